package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mercadolocal/mercadito-backend/internal/webhooks"
	pkgerrors "github.com/mercadolocal/mercadito-backend/pkg/errors"
)

type stubProcessor struct {
	result *webhooks.Result
	err    error

	payloads []string
	headers  []string
}

func (s *stubProcessor) Process(ctx context.Context, payload []byte, signatureHeader string) (*webhooks.Result, error) {
	s.payloads = append(s.payloads, string(payload))
	s.headers = append(s.headers, signatureHeader)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func postEvent(t *testing.T, handler http.HandlerFunc, body, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhookRequiresSignatureHeader(t *testing.T) {
	proc := &stubProcessor{result: &webhooks.Result{Received: true}}
	rec := postEvent(t, StripeWebhook(proc, nil), `{}`, "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
	if len(proc.payloads) != 0 {
		t.Fatal("processor must not run without a signature header")
	}
}

func TestStripeWebhookForwardsPayloadVerbatim(t *testing.T) {
	proc := &stubProcessor{result: &webhooks.Result{Received: true, EventType: "invoice.paid"}}
	body := `{"id":"evt_1","type":"invoice.paid"}`

	rec := postEvent(t, StripeWebhook(proc, nil), body, "t=1,v1=abc")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	if len(proc.payloads) != 1 || proc.payloads[0] != body {
		t.Fatalf("payload mangled: %q", proc.payloads)
	}
	if proc.headers[0] != "t=1,v1=abc" {
		t.Fatalf("header: %q", proc.headers[0])
	}

	var envelope struct {
		Data struct {
			Received  bool `json:"received"`
			Duplicate bool `json:"duplicate"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Received || envelope.Data.Duplicate {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func TestStripeWebhookReportsDuplicates(t *testing.T) {
	proc := &stubProcessor{result: &webhooks.Result{Received: true, Duplicate: true}}

	rec := postEvent(t, StripeWebhook(proc, nil), `{"id":"evt_1"}`, "t=1,v1=abc")

	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	var envelope struct {
		Data struct {
			Duplicate bool `json:"duplicate"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Data.Duplicate {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func TestStripeWebhookBadSignatureIs400(t *testing.T) {
	proc := &stubProcessor{err: pkgerrors.New(pkgerrors.CodeValidation, "invalid webhook signature")}

	rec := postEvent(t, StripeWebhook(proc, nil), `{"id":"evt_1"}`, "t=1,v1=nope")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: %d", rec.Code)
	}
}
