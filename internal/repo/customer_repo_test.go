package repo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/recipe-chat-backend/internal/domain"
)

func TestCreateCustomer_NormalizesEmail_AndRejectsDuplicate(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()

	c := &domain.Customer{Email: "  Cook@Example.COM ", Credits: 10}
	if err := CreateCustomer(ctx, db, c); err != nil {
		t.Fatalf("CreateCustomer: %v", err)
	}
	if c.ID == "" || c.Email != "cook@example.com" || c.Status != domain.CustomerActive {
		t.Fatalf("unexpected customer: %+v", c)
	}

	got, err := GetCustomerByEmail(ctx, db, "COOK@example.com")
	if err != nil || got.ID != c.ID {
		t.Fatalf("GetCustomerByEmail: got=%+v err=%v", got, err)
	}

	err = CreateCustomer(ctx, db, &domain.Customer{Email: "cook@EXAMPLE.com"})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	if _, err := GetCustomer(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDebitCredit_DecrementsUntilZero(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedCustomer(t, db, "c1", 2)

	for i := 0; i < 2; i++ {
		if err := DebitCredit(ctx, db, "c1"); err != nil {
			t.Fatalf("debit %d: %v", i, err)
		}
	}
	if err := DebitCredit(ctx, db, "c1"); !errors.Is(err, ErrNoCredits) {
		t.Fatalf("expected ErrNoCredits at zero, got %v", err)
	}
	if n, _ := GetCredits(ctx, db, "c1"); n != 0 {
		t.Fatalf("balance = %d; want 0", n)
	}

	if err := DebitCredit(ctx, db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown customer, got %v", err)
	}
}

func TestDebitCredit_ConcurrentStorm(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	const (
		balance = 5
		callers = 20
	)
	seedCustomer(t, db, "c1", balance)

	var ok, empty, other int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			switch err := DebitCredit(ctx, db, "c1"); {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, ErrNoCredits):
				atomic.AddInt32(&empty, 1)
			default:
				atomic.AddInt32(&other, 1)
				t.Errorf("unexpected debit error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if ok != balance || empty != callers-balance || other != 0 {
		t.Fatalf("successes=%d empties=%d others=%d; want %d/%d/0", ok, empty, other, balance, callers-balance)
	}
	if n, _ := GetCredits(ctx, db, "c1"); n != 0 {
		t.Fatalf("final balance = %d; want 0", n)
	}
}

func TestAddCredits_AndNotFound(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedCustomer(t, db, "c1", 3)

	if err := AddCredits(ctx, db, "c1", 60); err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	if n, _ := GetCredits(ctx, db, "c1"); n != 63 {
		t.Fatalf("balance = %d; want 63", n)
	}
	if err := AddCredits(ctx, db, "ghost", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := GetCredits(ctx, db, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound from GetCredits, got %v", err)
	}
}

func TestUpdateProfile_AndTouchLogin(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedCustomer(t, db, "c1", 0)

	age := 41
	p := domain.Profile{SkillLevel: "advanced", Allergies: []string{"peanuts"}, DietaryPreferences: []string{"vegan"}, Age: &age}
	if err := UpdateProfile(ctx, db, "c1", p); err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	now := time.Now().UTC()
	if err := TouchLogin(ctx, db, "c1", now); err != nil {
		t.Fatalf("TouchLogin: %v", err)
	}

	got, err := GetCustomer(ctx, db, "c1")
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if got.SkillLevel != "advanced" || len(got.Allergies) != 1 || got.Allergies[0] != "peanuts" || got.Age == nil || *got.Age != 41 {
		t.Fatalf("profile not persisted: %+v", got.Profile)
	}
	if got.LastLoginAt == nil {
		t.Fatalf("LastLoginAt not set")
	}

	if err := UpdateProfile(ctx, db, "ghost", p); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
