package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestEpayVerifyWebhook(t *testing.T) {
	p := NewEpayProvider("webhook-secret")
	body := []byte(`{"event":"payment.succeeded","reference":"pay_1","amount":100}`)

	if !p.VerifyWebhook(body, sign("webhook-secret", body)) {
		t.Fatal("valid signature rejected")
	}
	if !p.VerifyWebhook(body, strings.ToUpper(sign("webhook-secret", body))) {
		t.Fatal("uppercase hex signature rejected")
	}
	if p.VerifyWebhook(body, sign("wrong-secret", body)) {
		t.Fatal("signature with wrong secret accepted")
	}
	if p.VerifyWebhook(body, "") {
		t.Fatal("empty signature accepted")
	}
	if p.VerifyWebhook([]byte(`{"tampered":true}`), sign("webhook-secret", body)) {
		t.Fatal("signature over different body accepted")
	}
}

func TestEpayVerifyWebhookNoSecret(t *testing.T) {
	p := NewEpayProvider("")
	body := []byte(`{}`)
	if p.VerifyWebhook(body, sign("", body)) {
		t.Fatal("provider without secret must reject everything")
	}
}

func TestEpayParseWebhook(t *testing.T) {
	p := NewEpayProvider("s")

	event, err := p.ParseWebhook([]byte(`{"event":"payment.succeeded","reference":"pay_42","amount":250}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.EventType != EventSucceeded || event.Reference != "pay_42" || event.Amount != 250 {
		t.Fatalf("unexpected event: %+v", event)
	}

	// Some gateway versions send only a status field
	event, err = p.ParseWebhook([]byte(`{"reference":"pay_43","status":"APPROVED"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.EventType != EventSucceeded {
		t.Fatalf("expected succeeded from approved status, got %q", event.EventType)
	}

	event, err = p.ParseWebhook([]byte(`{"reference":"pay_44","status":"declined"}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if event.EventType != EventFailed {
		t.Fatalf("expected failed from declined status, got %q", event.EventType)
	}

	if _, err := p.ParseWebhook([]byte(`{"event":"payment.succeeded"}`)); err == nil {
		t.Fatal("missing reference accepted")
	}
	if _, err := p.ParseWebhook([]byte(`not json`)); err == nil {
		t.Fatal("malformed body accepted")
	}
	if _, err := p.ParseWebhook([]byte(`{"event":"payment.exploded","reference":"pay_45"}`)); err == nil {
		t.Fatal("unknown event type accepted")
	}
}

func TestFactory(t *testing.T) {
	f := NewFactory()
	f.Register(NewEpayProvider("s"))

	p, err := f.Get(ProviderEpay)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if p.Name() != ProviderEpay {
		t.Fatalf("unexpected provider %q", p.Name())
	}

	if _, err := f.Get("stripe"); err == nil {
		t.Fatal("unknown provider resolved")
	}
}

func TestMapStatusToEventType(t *testing.T) {
	for _, s := range []string{"success", "Succeeded", "COMPLETED", "paid", "Approved", "authorized"} {
		if got := MapStatusToEventType(s); got != EventSucceeded {
			t.Errorf("%q: expected succeeded, got %q", s, got)
		}
	}
	// Unknown statuses never credit
	for _, s := range []string{"declined", "refunded", "chargeback", ""} {
		if got := MapStatusToEventType(s); got != EventFailed {
			t.Errorf("%q: expected failed, got %q", s, got)
		}
	}
}
