// Package utils provides small, generic helpers shared by the HTTP and
// service layers: query parsing and page arithmetic. Nothing here knows
// about sessions, recipes or payments.
package utils

import "strconv"

// AtoiDefault converts s with strconv.Atoi and returns def when s is empty
// or not an integer.
//
//	utils.AtoiDefault("42", 0) // 42
//	utils.AtoiDefault("", 10)  // 10
//	utils.AtoiDefault("x", 5)  // 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds n to [lo, hi]. A hi <= 0 leaves the upper side open.
func Clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if hi > 0 && n > hi {
		return hi
	}
	return n
}

// Page is a normalized 1-based page request.
type Page struct {
	Number int
	Size   int
}

// NewPage normalizes a page request: numbers start at 1, a non-positive
// size becomes defSize, and sizes are capped at maxSize when maxSize > 0.
func NewPage(number, size, defSize, maxSize int) Page {
	if size <= 0 {
		size = defSize
	}
	return Page{
		Number: Clamp(number, 1, 0),
		Size:   Clamp(size, 1, maxSize),
	}
}

// Offset is the number of rows before the page.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages returns how many pages of size hold total rows.
func TotalPages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}
