package domain

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:domain_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection so the FK pragma applies to every statement.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := db.AutoMigrate(&Customer{}, &PaymentTransaction{}, &ChatSession{}, &Message{}, &Feedback{}, &Recipe{}, &Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		Customer{}.TableName():           "customers",
		PaymentTransaction{}.TableName(): "payment_transactions",
		ChatSession{}.TableName():        "chat_sessions",
		Message{}.TableName():            "messages",
		Feedback{}.TableName():           "feedback",
		Recipe{}.TableName():             "recipes",
		Idempotency{}.TableName():        "idempotency",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)
	m := db.Migrator()

	if !m.HasIndex(&ChatSession{}, "idx_customer_sessions") {
		t.Fatalf("expected index idx_customer_sessions")
	}
	if !m.HasIndex(&Message{}, "idx_session_msgs") {
		t.Fatalf("expected index idx_session_msgs")
	}
	if !m.HasIndex(&Feedback{}, "ux_feedback_message_customer") {
		t.Fatalf("expected unique index ux_feedback_message_customer")
	}
	if !m.HasIndex(&Idempotency{}, "ux_customer_session_key") {
		t.Fatalf("expected unique index ux_customer_session_key")
	}
}

func TestCustomer_ProfileSerializer_AndCreditsCheck(t *testing.T) {
	db := newDomainDB(t)
	age := 30
	c := &Customer{
		ID: "c1", Email: "a@b.co", Credits: 10, Status: CustomerActive,
		Profile: Profile{
			SkillLevel: "beginner",
			Allergies:  []string{"peanuts", "shellfish"},
			Age:        &age,
		},
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	var got Customer
	if err := db.First(&got, "id = ?", "c1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if !reflect.DeepEqual(got.Allergies, []string{"peanuts", "shellfish"}) || got.Age == nil || *got.Age != 30 {
		t.Fatalf("profile roundtrip: %+v", got.Profile)
	}

	// credits >= 0 is enforced by the schema as a last line of defense
	if err := db.Model(&Customer{}).Where("id = ?", "c1").Update("credits", -1).Error; err == nil {
		t.Fatalf("expected CHECK violation for negative credits")
	}
}

func TestPaymentTransaction_DecimalAndTerminal(t *testing.T) {
	db := newDomainDB(t)
	txn := &PaymentTransaction{
		ID: "p1", TransactionID: "TXN_1", CustomerID: "c1", Credits: 60,
		Amount: decimal.RequireFromString("249.00"), Currency: "INR", Gateway: "phonepe", Status: TxnPending,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	var got PaymentTransaction
	if err := db.First(&got, "transaction_id = ?", "TXN_1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(249)) {
		t.Fatalf("amount = %s", got.Amount)
	}
	if got.Terminal() {
		t.Fatalf("PENDING must not be terminal")
	}
	got.Status = TxnFailed
	if !got.Terminal() {
		t.Fatalf("FAILED must be terminal")
	}

	dup := *txn
	dup.ID = "p2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation on transaction_id")
	}
}

func TestCascades_SessionMessagesFeedback(t *testing.T) {
	db := newDomainDB(t)
	now := time.Now().UTC()

	s := &ChatSession{ID: "s1", SessionID: "pub-1", CustomerID: "c1", Title: DefaultSessionTitle, LastMessageAt: now}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("insert session: %v", err)
	}
	m1 := &Message{ID: "m1", ChatSessionID: "s1", Sender: SenderUser, Text: "hi", CreatedAt: now}
	m2 := &Message{ID: "m2", ChatSessionID: "s1", Sender: SenderAI, Text: "hello", CreatedAt: now.Add(time.Second)}
	for _, m := range []*Message{m1, m2} {
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("insert message: %v", err)
		}
	}
	if err := db.Create(&Feedback{ID: "f1", MessageID: "m2", CustomerID: "c1", Value: 1}).Error; err != nil {
		t.Fatalf("insert feedback: %v", err)
	}

	bad := &Message{ID: "m3", ChatSessionID: "s1", Sender: "bot", Text: "x", CreatedAt: now}
	if err := db.Create(bad).Error; err == nil {
		t.Fatalf("expected CHECK violation for unknown sender")
	}

	if err := db.Delete(&ChatSession{}, "id = ?", "s1").Error; err != nil {
		t.Fatalf("delete session: %v", err)
	}
	var cnt int64
	db.Model(&Message{}).Where("chat_session_id = ?", "s1").Count(&cnt)
	if cnt != 0 {
		t.Fatalf("messages should cascade-delete, got %d", cnt)
	}
	db.Model(&Feedback{}).Count(&cnt)
	if cnt != 0 {
		t.Fatalf("feedback should cascade-delete, got %d", cnt)
	}
}

func TestIdempotency_UniqueKey(t *testing.T) {
	db := newDomainDB(t)
	now := time.Now().UTC()
	rec := &Idempotency{ID: "i1", CustomerID: "c1", SessionID: "s1", Key: "k1", MessageID: "m1", Status: 200, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	dup := *rec
	dup.ID = "i2"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected UNIQUE violation on (customer_id, session_id, key)")
	}
}
