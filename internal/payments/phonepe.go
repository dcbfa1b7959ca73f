package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/recipe-chat-backend/internal/config"
)

// PhonePe API endpoints, relative to the environment base URL.
const (
	phonePePayPath    = "/pg/v1/pay"
	phonePeNotifyPath = "/pg/v1/notify"
	phonePeStatusPath = "/pg/v1/status"

	phonePeSandboxURL    = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	phonePeProductionURL = "https://api.phonepe.com/apis/hermes"
)

// PhonePe status codes.
const (
	phonePeSuccess = "PAYMENT_SUCCESS"
	phonePePending = "PAYMENT_PENDING"
)

// PhonePe sells credit packs through the PhonePe standard checkout (PAY_PAGE).
// Amounts travel in paise.
type PhonePe struct {
	cfg         config.PhonePeConfig
	prices      priceTable
	baseURL     string
	redirectURL string
	callbackURL string
	http        *http.Client
}

// NewPhonePe returns ErrNotConfigured when merchant ID or salt key is missing.
// redirectURL is the browser return path; callbackURL receives server-to-server
// notifications.
func NewPhonePe(cfg config.PhonePeConfig, redirectURL, callbackURL string, hc *http.Client) (*PhonePe, error) {
	if strings.TrimSpace(cfg.MerchantID) == "" || strings.TrimSpace(cfg.SaltKey) == "" {
		return nil, fmt.Errorf("%w: phonepe", ErrNotConfigured)
	}
	if cfg.SaltIndex == "" {
		cfg.SaltIndex = "1"
	}
	base := cfg.BaseURL
	if base == "" {
		base = phonePeSandboxURL
		if cfg.Env == "production" {
			base = phonePeProductionURL
		}
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &PhonePe{
		cfg:         cfg,
		prices:      priceTable(cfg.Prices),
		baseURL:     strings.TrimRight(base, "/"),
		redirectURL: redirectURL,
		callbackURL: callbackURL,
		http:        hc,
	}, nil
}

func (p *PhonePe) Name() string     { return GatewayPhonePe }
func (p *PhonePe) Currency() string { return "INR" }
func (p *PhonePe) Packs() []int     { return p.prices.packs() }

func (p *PhonePe) Price(credits int) (decimal.Decimal, error) {
	return p.prices.price(credits)
}

// xVerify computes sha256(parts... + saltKey) + "###" + saltIndex.
func (p *PhonePe) xVerify(parts ...string) string {
	h := sha256.New()
	for _, s := range parts {
		_, _ = io.WriteString(h, s)
	}
	_, _ = io.WriteString(h, p.cfg.SaltKey)
	return hex.EncodeToString(h.Sum(nil)) + "###" + p.cfg.SaltIndex
}

type phonePePayRequest struct {
	MerchantID            string `json:"merchantId"`
	MerchantTransactionID string `json:"merchantTransactionId"`
	MerchantUserID        string `json:"merchantUserId"`
	Amount                int64  `json:"amount"`
	RedirectURL           string `json:"redirectUrl"`
	RedirectMode          string `json:"redirectMode"`
	CallbackURL           string `json:"callbackUrl"`
	MobileNumber          string `json:"mobileNumber,omitempty"`
	PaymentInstrument     struct {
		Type string `json:"type"`
	} `json:"paymentInstrument"`
}

type phonePeResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		MerchantUserID        string `json:"merchantUserId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
		State                 string `json:"state"`
		InstrumentResponse    struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

// CreatePayment initiates a PAY_PAGE checkout and returns its redirect URL.
func (p *PhonePe) CreatePayment(ctx context.Context, req CreateRequest) (*Checkout, error) {
	amount, err := p.Price(req.Credits)
	if err != nil {
		return nil, err
	}
	pr := phonePePayRequest{
		MerchantID:            p.cfg.MerchantID,
		MerchantTransactionID: req.TransactionID,
		MerchantUserID:        req.CustomerID,
		Amount:                toPaise(amount),
		RedirectURL:           strings.ReplaceAll(p.redirectURL, "{txn}", req.TransactionID),
		RedirectMode:          "REDIRECT",
		CallbackURL:           p.callbackURL,
		MobileNumber:          req.Phone,
	}
	pr.PaymentInstrument.Type = "PAY_PAGE"

	raw, err := json.Marshal(pr)
	if err != nil {
		return nil, err
	}
	b64 := base64.StdEncoding.EncodeToString(raw)
	body, _ := json.Marshal(map[string]string{"request": b64})

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+phonePePayPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", p.xVerify(b64, phonePePayPath))

	resp, err := p.do(httpReq)
	if err != nil {
		return nil, &GatewayError{Gateway: GatewayPhonePe, Op: "pay", Err: err}
	}
	url := resp.Data.InstrumentResponse.RedirectInfo.URL
	if !resp.Success || url == "" {
		return nil, &GatewayError{Gateway: GatewayPhonePe, Op: "pay", Err: fmt.Errorf("code=%s: %s", resp.Code, resp.Message)}
	}
	return &Checkout{RedirectURL: url, ProviderRef: req.TransactionID}, nil
}

// Verify checks the X-VERIFY header of a server-to-server notification and
// decodes its base64 payload. The header is mandatory.
func (p *PhonePe) Verify(_ context.Context, payload []byte, header http.Header) (*Notification, error) {
	var body struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Response == "" {
		return nil, fmt.Errorf("%w: missing response field", ErrSignatureInvalid)
	}
	got := header.Get("X-VERIFY")
	want := p.xVerify(body.Response, phonePeNotifyPath)
	if got == "" || !hmac.Equal([]byte(got), []byte(want)) {
		return nil, ErrSignatureInvalid
	}

	decoded, err := base64.StdEncoding.DecodeString(body.Response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	var r phonePeResponse
	if err := json.Unmarshal(decoded, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if r.Data.MerchantTransactionID == "" {
		return nil, fmt.Errorf("%w: no merchant transaction id", ErrMalformedNotification)
	}
	n := p.notification(&r)
	// PhonePe has no event IDs; the provider transaction plus code identifies a delivery.
	n.EventID = r.Data.MerchantTransactionID + ":" + r.Code
	return n, nil
}

// CheckStatus polls the status endpoint for a transaction.
func (p *PhonePe) CheckStatus(ctx context.Context, transactionID, _ string) (*Notification, error) {
	path := fmt.Sprintf("%s/%s/%s", phonePeStatusPath, p.cfg.MerchantID, transactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", p.xVerify(path))
	httpReq.Header.Set("X-MERCHANT-ID", p.cfg.MerchantID)

	resp, err := p.do(httpReq)
	if err != nil {
		return nil, &GatewayError{Gateway: GatewayPhonePe, Op: "status", Err: err}
	}
	if resp.Data.MerchantTransactionID == "" {
		resp.Data.MerchantTransactionID = transactionID
	}
	n := p.notification(resp)
	n.Kind = "poll:" + resp.Code
	return n, nil
}

func (p *PhonePe) notification(r *phonePeResponse) *Notification {
	n := &Notification{
		TransactionID: r.Data.MerchantTransactionID,
		CustomerID:    r.Data.MerchantUserID,
		ProviderRef:   r.Data.TransactionID,
		Kind:          r.Code,
	}
	if r.Data.Amount > 0 {
		n.Amount = fromPaise(r.Data.Amount)
		n.HasAmount = true
	}
	switch {
	case r.Success && r.Code == phonePeSuccess:
		n.Outcome = OutcomeSuccess
	case r.Code == phonePePending:
		n.Outcome = OutcomePending
	default:
		n.Outcome = OutcomeFailed
	}
	return n
}

// do sends req and decodes a PhonePe envelope. Non-2xx responses with a
// decodable envelope are returned as errors carrying its code.
func (p *PhonePe) do(req *http.Request) (*phonePeResponse, error) {
	res, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	var out phonePeResponse
	decErr := json.Unmarshal(raw, &out)
	if res.StatusCode/100 != 2 {
		if decErr == nil && out.Code != "" {
			return nil, fmt.Errorf("http %d: code=%s: %s", res.StatusCode, out.Code, out.Message)
		}
		return nil, fmt.Errorf("http %d", res.StatusCode)
	}
	if decErr != nil {
		return nil, errors.Join(errors.New("decode response"), decErr)
	}
	return &out, nil
}

func toPaise(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromPaise(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}
