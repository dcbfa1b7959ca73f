package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/tbourn/recipe-chat-backend/internal/services"
)

const msgID = "fa4dfbe0-c3bf-47bd-b32f-d7de221cf43b"

func TestLeaveFeedback_Success(t *testing.T) {
	var gotCID, gotMID string
	var gotVal int
	r := newTestRouter(New(Deps{Feedback: stubFeedback(func(_ context.Context, cid, mid string, v int) error {
		gotCID, gotMID, gotVal = cid, mid, v
		return nil
	})}))

	w := do(t, r, http.MethodPost, "/messages/"+msgID+"/feedback", map[string]any{"value": -1}, testCustomer)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if gotCID != testCustomer || gotMID != msgID || gotVal != -1 {
		t.Fatalf("unexpected call: %s %s %d", gotCID, gotMID, gotVal)
	}
}

func TestLeaveFeedback_BadInput(t *testing.T) {
	r := newTestRouter(New(Deps{Feedback: stubFeedback(func(context.Context, string, string, int) error {
		t.Fatalf("must not be called")
		return nil
	})}))

	cases := []struct {
		name string
		path string
		body any
	}{
		{"bad id", "/messages/xyz/feedback", map[string]any{"value": 1}},
		{"zero", "/messages/" + msgID + "/feedback", map[string]any{"value": 0}},
		{"out of range", "/messages/" + msgID + "/feedback", map[string]any{"value": 2}},
		{"missing", "/messages/" + msgID + "/feedback", map[string]any{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectError(t, do(t, r, http.MethodPost, tc.path, tc.body, testCustomer), http.StatusBadRequest, ErrCodeBadRequest)
		})
	}
}

func TestLeaveFeedback_ServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrMessageNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrForbiddenFeedback, http.StatusForbidden, ErrCodeForbidden},
		{services.ErrDuplicateFeedback, http.StatusConflict, ErrCodeConflict},
		{services.ErrInvalidFeedback, http.StatusBadRequest, ErrCodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			r := newTestRouter(New(Deps{Feedback: stubFeedback(func(context.Context, string, string, int) error { return tc.err })}))
			expectError(t, do(t, r, http.MethodPost, "/messages/"+msgID+"/feedback", map[string]any{"value": 1}, testCustomer), tc.status, tc.code)
		})
	}
}
