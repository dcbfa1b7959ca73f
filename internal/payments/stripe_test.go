package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"

	"github.com/tbourn/recipe-chat-backend/internal/config"
)

const testWebhookSecret = "whsec_test"

type fakeSessions struct {
	created *stripe.CheckoutSessionCreateParams
	newErr  error
	got     *stripe.CheckoutSession
}

func (f *fakeSessions) Create(_ context.Context, p *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	f.created = p
	if f.newErr != nil {
		return nil, f.newErr
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (f *fakeSessions) Retrieve(_ context.Context, id string, _ *stripe.CheckoutSessionRetrieveParams) (*stripe.CheckoutSession, error) {
	if f.got == nil {
		return nil, errors.New("not found")
	}
	return f.got, nil
}

func newTestStripe(api CheckoutSessions) *Stripe {
	return newStripe(config.StripeConfig{
		SecretKey:     "sk_test_x",
		WebhookSecret: testWebhookSecret,
		Currency:      "usd",
		PriceIDs:      map[int]string{60: "price_60"},
		Amounts: map[int]decimal.Decimal{
			20: decimal.RequireFromString("4.99"),
			60: decimal.RequireFromString("9.99"),
		},
	}, "https://app.test", api)
}

func signStripe(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func stripeEvent(id, typ, sessionJSON string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":%q,"type":%q,"data":{"object":%s}}`,
		id, stripe.APIVersion, typ, sessionJSON))
}

func signedHeader(payload []byte) http.Header {
	h := http.Header{}
	h.Set("Stripe-Signature", signStripe(payload, testWebhookSecret, time.Now().Unix()))
	return h
}

const paidSession = `{"id":"cs_1","object":"checkout.session","payment_status":"paid","status":"complete","amount_total":999,"client_reference_id":"TXN_1","metadata":{"transaction_id":"TXN_1","customer_id":"c1","credits":"60"}}`

func TestNewStripe_NotConfigured(t *testing.T) {
	_, err := NewStripe(config.StripeConfig{SecretKey: "sk_test_x"}, "https://app.test")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewStripe_ScopesKeyToGateway(t *testing.T) {
	before := stripe.Key
	t.Cleanup(func() { stripe.Key = before })

	a, err := NewStripe(config.StripeConfig{SecretKey: "sk_test_a", WebhookSecret: "whsec_a"}, "https://app.test")
	require.NoError(t, err)
	b, err := NewStripe(config.StripeConfig{SecretKey: "sk_test_b", WebhookSecret: "whsec_b"}, "https://app.test")
	require.NoError(t, err)

	assert.Equal(t, before, stripe.Key, "package-level key must not change")
	assert.NotSame(t, a.sessions, b.sessions)
}

func TestStripe_CreatePayment_UsesPriceIDAndMetadata(t *testing.T) {
	api := &fakeSessions{}
	s := newTestStripe(api)

	co, err := s.CreatePayment(context.Background(), CreateRequest{TransactionID: "TXN_1", CustomerID: "c1", Credits: 60})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", co.ProviderRef)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", co.RedirectURL)

	p := api.created
	require.NotNil(t, p)
	assert.Equal(t, "payment", *p.Mode)
	assert.Equal(t, "TXN_1", *p.ClientReferenceID)
	assert.Equal(t, "price_60", *p.LineItems[0].Price)
	assert.Equal(t, map[string]string{"transaction_id": "TXN_1", "customer_id": "c1", "credits": "60"}, p.Metadata)
	assert.Equal(t, "https://app.test/buy-credits?status=success&txn=TXN_1", *p.SuccessURL)
	assert.Equal(t, "https://app.test/buy-credits?status=cancel&txn=TXN_1", *p.CancelURL)
}

func TestStripe_CreatePayment_InlinePrice(t *testing.T) {
	api := &fakeSessions{}
	s := newTestStripe(api)

	_, err := s.CreatePayment(context.Background(), CreateRequest{TransactionID: "TXN_2", CustomerID: "c1", Credits: 20})
	require.NoError(t, err)
	pd := api.created.LineItems[0].PriceData
	require.NotNil(t, pd)
	assert.Equal(t, int64(499), *pd.UnitAmount)
	assert.Equal(t, "usd", *pd.Currency)
}

func TestStripe_CreatePayment_Errors(t *testing.T) {
	s := newTestStripe(&fakeSessions{})
	_, err := s.CreatePayment(context.Background(), CreateRequest{TransactionID: "T", Credits: 150})
	assert.ErrorIs(t, err, ErrUnknownPack)

	s = newTestStripe(&fakeSessions{newErr: errors.New("card network down")})
	_, err = s.CreatePayment(context.Background(), CreateRequest{TransactionID: "T", Credits: 60})
	var ge *GatewayError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, GatewayStripe, ge.Gateway)
}

func TestStripe_Verify_CompletedPaid(t *testing.T) {
	s := newTestStripe(&fakeSessions{})
	payload := stripeEvent("evt_1", "checkout.session.completed", paidSession)

	n, err := s.Verify(context.Background(), payload, signedHeader(payload))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", n.EventID)
	assert.Equal(t, "TXN_1", n.TransactionID)
	assert.Equal(t, "c1", n.CustomerID)
	assert.Equal(t, OutcomeSuccess, n.Outcome)
	assert.True(t, n.HasAmount)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, "cs_1", n.ProviderRef)
}

func TestStripe_Verify_Outcomes(t *testing.T) {
	unpaid := `{"id":"cs_2","object":"checkout.session","payment_status":"unpaid","client_reference_id":"TXN_2"}`
	cases := []struct {
		typ     string
		session string
		want    Outcome
	}{
		{"checkout.session.completed", unpaid, OutcomePending},
		{"checkout.session.async_payment_succeeded", unpaid, OutcomeSuccess},
		{"checkout.session.async_payment_failed", unpaid, OutcomeFailed},
		{"checkout.session.expired", unpaid, OutcomeFailed},
	}
	s := newTestStripe(&fakeSessions{})
	for _, tc := range cases {
		payload := stripeEvent("evt_"+tc.typ, tc.typ, tc.session)
		n, err := s.Verify(context.Background(), payload, signedHeader(payload))
		require.NoError(t, err, tc.typ)
		assert.Equal(t, tc.want, n.Outcome, tc.typ)
		assert.Equal(t, "TXN_2", n.TransactionID, tc.typ)
	}
}

func TestStripe_Verify_IgnoresOtherEvents(t *testing.T) {
	s := newTestStripe(&fakeSessions{})
	payload := stripeEvent("evt_9", "customer.created", `{"id":"cus_1","object":"customer"}`)
	n, err := s.Verify(context.Background(), payload, signedHeader(payload))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, n.Outcome)
	assert.Empty(t, n.TransactionID)
}

func TestStripe_Verify_BadSignature(t *testing.T) {
	s := newTestStripe(&fakeSessions{})
	payload := stripeEvent("evt_1", "checkout.session.completed", paidSession)

	h := http.Header{}
	h.Set("Stripe-Signature", signStripe(payload, "whsec_other", time.Now().Unix()))
	_, err := s.Verify(context.Background(), payload, h)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	_, err = s.Verify(context.Background(), payload, http.Header{})
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestStripe_CheckStatus(t *testing.T) {
	api := &fakeSessions{got: &stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal:   999,
		Metadata:      map[string]string{"transaction_id": "TXN_1"},
	}}
	s := newTestStripe(api)

	n, err := s.CheckStatus(context.Background(), "TXN_1", "cs_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, n.Outcome)

	api.got = &stripe.CheckoutSession{ID: "cs_1", Status: stripe.CheckoutSessionStatusExpired}
	n, err = s.CheckStatus(context.Background(), "TXN_1", "cs_1")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, n.Outcome)
	assert.Equal(t, "TXN_1", n.TransactionID)

	n, err = s.CheckStatus(context.Background(), "TXN_1", "")
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, n.Outcome)
}
