// Package services defines the business logic for customers, credits, chat
// sessions, AI turns, recipes, payments and feedback. This file centralizes
// the service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Customer and credit errors.
var (
	// ErrCustomerNotFound indicates that the customer does not exist.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrInsufficientCredits is returned when a debit finds a zero balance.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned for non-positive credit amounts.
	ErrInvalidAmount = errors.New("credit amount must be positive")

	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrAccountDisabled is returned when an inactive or suspended customer
	// tries to log in.
	ErrAccountDisabled = errors.New("account is not active")
)

// Session and message errors.
var (
	// ErrSessionNotFound indicates that the session does not exist or belongs
	// to another customer.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyMessage is returned when a chat message is blank.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrMessageTooLong is returned when a chat message exceeds the configured
	// maximum length.
	ErrMessageTooLong = errors.New("message too long")

	// ErrRecipeNotFound indicates that the recipe does not exist or belongs to
	// another customer.
	ErrRecipeNotFound = errors.New("recipe not found")
)

// Feedback errors.
var (
	// ErrInvalidFeedback is returned when a feedback value is outside the
	// allowed set (-1 or 1).
	ErrInvalidFeedback = errors.New("feedback value must be -1 or 1")

	// ErrMessageNotFound indicates that the requested message does not exist
	// or is not accessible to the current customer.
	ErrMessageNotFound = errors.New("message not found")

	// ErrForbiddenFeedback is returned when rating a message the customer may
	// not rate (for example their own message).
	ErrForbiddenFeedback = errors.New("cannot leave feedback on this message")

	// ErrDuplicateFeedback is returned when the customer already rated the message.
	ErrDuplicateFeedback = errors.New("feedback already exists")
)

// Payment errors.
var (
	// ErrTransactionNotFound indicates an unknown transaction or one owned by
	// another customer.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// ErrEmptyTitle is returned when renaming a session to a blank title.
var ErrEmptyTitle = errors.New("title is empty")
