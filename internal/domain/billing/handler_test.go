package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shopera/billing-api/internal/domain/boost"
	"github.com/shopera/billing-api/internal/domain/featured"
	"github.com/shopera/billing-api/internal/domain/ledger"
	"github.com/shopera/billing-api/internal/middleware"
	"github.com/shopera/billing-api/internal/pkg/gateway"
)

// --- fakes ---

type fakeLedger struct {
	debitErr    error
	confirmErr  error
	confirmRefs []string
	debits      []int64
	refunds     []int64
}

func (f *fakeLedger) GetAccount(ctx context.Context, accountID uuid.UUID) (*ledger.Account, error) {
	return &ledger.Account{ID: accountID, CurrentBalance: 100}, nil
}

func (f *fakeLedger) Debit(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr ledger.Correlation) (*ledger.Transaction, error) {
	if f.debitErr != nil {
		return nil, f.debitErr
	}
	f.debits = append(f.debits, amount)
	return &ledger.Transaction{ID: uuid.New(), AccountID: accountID, Amount: -amount}, nil
}

func (f *fakeLedger) Refund(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr ledger.Correlation) (*ledger.Transaction, error) {
	f.refunds = append(f.refunds, amount)
	return &ledger.Transaction{ID: uuid.New(), AccountID: accountID, Amount: amount}, nil
}

func (f *fakeLedger) Adjust(ctx context.Context, accountID uuid.UUID, delta int64, description string, adminID uuid.UUID) (*ledger.Transaction, error) {
	if delta == 0 {
		return nil, ledger.ErrInvalidAmount
	}
	return &ledger.Transaction{ID: uuid.New(), AccountID: accountID, Amount: delta}, nil
}

func (f *fakeLedger) RegisterPending(ctx context.Context, accountID uuid.UUID, amount int64, externalRef, description string) (*ledger.Transaction, error) {
	return &ledger.Transaction{ID: uuid.New(), AccountID: accountID, Amount: amount, Status: ledger.StatusPending}, nil
}

func (f *fakeLedger) ConfirmPending(ctx context.Context, externalRef string) (*ledger.Transaction, error) {
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	f.confirmRefs = append(f.confirmRefs, externalRef)
	return &ledger.Transaction{ID: uuid.New(), AccountID: uuid.New(), Amount: 100, Status: ledger.StatusCompleted}, nil
}

func (f *fakeLedger) FailPending(ctx context.Context, externalRef string) (*ledger.Transaction, error) {
	return &ledger.Transaction{ID: uuid.New(), AccountID: uuid.New(), Status: ledger.StatusFailed}, nil
}

func (f *fakeLedger) History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]ledger.Transaction, error) {
	return []ledger.Transaction{}, nil
}

func (f *fakeLedger) Reconcile(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return 0, nil
}

type fakeBoost struct {
	campaigns map[uuid.UUID]*boost.Campaign
	cancelled []uuid.UUID
	chargeErr error
}

func newFakeBoost() *fakeBoost {
	return &fakeBoost{campaigns: make(map[uuid.UUID]*boost.Campaign)}
}

func (f *fakeBoost) CreateCampaign(ctx context.Context, accountID uuid.UUID, pricePerClick, budget int64, schedule boost.Schedule, audience boost.Audience) (*boost.Campaign, error) {
	if pricePerClick <= 0 || budget < pricePerClick {
		return nil, boost.ErrInvalidCampaign
	}
	c := &boost.Campaign{ID: uuid.New(), AccountID: accountID, PricePerClick: pricePerClick, Budget: budget, Status: boost.StatusPending}
	f.campaigns[c.ID] = c
	return c, nil
}

func (f *fakeBoost) Activate(ctx context.Context, campaignID uuid.UUID) error {
	c, ok := f.campaigns[campaignID]
	if !ok {
		return boost.ErrCampaignNotFound
	}
	if c.Status != boost.StatusPending {
		return boost.ErrInvalidStateTransition
	}
	c.Status = boost.StatusActive
	return nil
}

func (f *fakeBoost) ChargeClick(ctx context.Context, campaignID uuid.UUID, reqCtx boost.RequestContext) (bool, error) {
	if f.chargeErr != nil {
		return false, f.chargeErr
	}
	if _, ok := f.campaigns[campaignID]; !ok {
		return false, boost.ErrCampaignNotFound
	}
	return true, nil
}

func (f *fakeBoost) RecordImpression(ctx context.Context, campaignID uuid.UUID) error { return nil }
func (f *fakeBoost) Pause(ctx context.Context, campaignID uuid.UUID) error            { return nil }
func (f *fakeBoost) Resume(ctx context.Context, campaignID uuid.UUID) error           { return nil }

func (f *fakeBoost) Cancel(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	f.cancelled = append(f.cancelled, campaignID)
	if c, ok := f.campaigns[campaignID]; ok {
		c.Status = boost.StatusCancelled
		return c.Budget - c.Spent, nil
	}
	return 0, boost.ErrCampaignNotFound
}

func (f *fakeBoost) GetCampaign(ctx context.Context, campaignID uuid.UUID) (*boost.Campaign, error) {
	c, ok := f.campaigns[campaignID]
	if !ok {
		return nil, boost.ErrCampaignNotFound
	}
	return c, nil
}

func (f *fakeBoost) ListCampaigns(ctx context.Context, accountID uuid.UUID) ([]boost.Campaign, error) {
	return []boost.Campaign{}, nil
}

func (f *fakeBoost) ListClicks(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]boost.ClickRecord, error) {
	return []boost.ClickRecord{}, nil
}

type fakeFeatured struct {
	ads         map[uuid.UUID]*featured.Ad
	markPaidErr error
}

func newFakeFeatured() *fakeFeatured {
	return &fakeFeatured{ads: make(map[uuid.UUID]*featured.Ad)}
}

func (f *fakeFeatured) Submit(ctx context.Context, accountID uuid.UUID, creative featured.Creative, schedule featured.Schedule, placements, targetCountries, targetCategories []string, proposedPrice int64, tier int, caps featured.Caps) (*featured.Ad, error) {
	a := &featured.Ad{ID: uuid.New(), AccountID: accountID, Title: creative.Title, Status: featured.StatusPendingApproval, ProposedPrice: proposedPrice}
	f.ads[a.ID] = a
	return a, nil
}

func (f *fakeFeatured) Approve(ctx context.Context, adID uuid.UUID, approvedPrice *int64, notes string, approverID uuid.UUID) (*featured.Ad, error) {
	a, ok := f.ads[adID]
	if !ok {
		return nil, featured.ErrAdNotFound
	}
	a.Status = featured.StatusApproved
	return a, nil
}

func (f *fakeFeatured) Reject(ctx context.Context, adID uuid.UUID, reason string) (*featured.Ad, error) {
	a, ok := f.ads[adID]
	if !ok {
		return nil, featured.ErrAdNotFound
	}
	a.Status = featured.StatusRejected
	return a, nil
}

func (f *fakeFeatured) MarkPaid(ctx context.Context, adID uuid.UUID) (*featured.Ad, error) {
	if f.markPaidErr != nil {
		return nil, f.markPaidErr
	}
	a, ok := f.ads[adID]
	if !ok {
		return nil, featured.ErrAdNotFound
	}
	if a.Terminal() {
		return nil, featured.ErrInvalidStateTransition
	}
	a.PaymentStatus = featured.PaymentPaid
	return a, nil
}

func (f *fakeFeatured) Pause(ctx context.Context, adID uuid.UUID) error            { return nil }
func (f *fakeFeatured) Resume(ctx context.Context, adID uuid.UUID) error           { return nil }
func (f *fakeFeatured) RecordImpression(ctx context.Context, adID uuid.UUID) error { return nil }
func (f *fakeFeatured) RecordClick(ctx context.Context, adID uuid.UUID) error      { return nil }

func (f *fakeFeatured) ListEligible(ctx context.Context, placement, country string) ([]featured.Ad, error) {
	return []featured.Ad{}, nil
}

func (f *fakeFeatured) GetAd(ctx context.Context, adID uuid.UUID) (*featured.Ad, error) {
	a, ok := f.ads[adID]
	if !ok {
		return nil, featured.ErrAdNotFound
	}
	return a, nil
}

func (f *fakeFeatured) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]featured.Ad, error) {
	return []featured.Ad{}, nil
}

// --- helpers ---

const testSecret = "test-webhook-secret"

func newTestHandler(l *fakeLedger, b *fakeBoost, f *fakeFeatured) *Handler {
	gateways := gateway.NewFactory()
	gateways.Register(gateway.NewEpayProvider(testSecret))
	return NewHandler(NewService(l, b, f, gateways, nil))
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func authedRequest(method, target string, body []byte, accountID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.AccountIDKey, accountID)
	ctx = context.WithValue(ctx, middleware.RoleKey, "provider")
	return req.WithContext(ctx)
}

func newRouter(h *Handler) chi.Router {
	passthrough := func(next http.Handler) http.Handler { return next }
	r := chi.NewRouter()
	r.Mount("/", h.PublicRoutes())
	r.Mount("/billing", h.Routes(passthrough, passthrough))
	r.Mount("/admin", h.AdminRoutes(passthrough, passthrough))
	return r
}

// --- tests ---

func TestWebhookValidSignature(t *testing.T) {
	l := &fakeLedger{}
	h := newTestHandler(l, newFakeBoost(), newFakeFeatured())
	r := newRouter(h)

	body := []byte(`{"event":"payment.succeeded","reference":"pay_1","amount":100}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/epay", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", sign(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(l.confirmRefs) != 1 || l.confirmRefs[0] != "pay_1" {
		t.Fatalf("expected one confirm for pay_1, got %v", l.confirmRefs)
	}
}

func TestWebhookBadSignature(t *testing.T) {
	l := &fakeLedger{}
	h := newTestHandler(l, newFakeBoost(), newFakeFeatured())
	r := newRouter(h)

	body := []byte(`{"event":"payment.succeeded","reference":"pay_1","amount":100}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/epay", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", "deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if len(l.confirmRefs) != 0 {
		t.Fatal("unsigned webhook reached the ledger")
	}
}

func TestWebhookDuplicateAcked(t *testing.T) {
	l := &fakeLedger{confirmErr: ledger.ErrDuplicateEvent}
	h := newTestHandler(l, newFakeBoost(), newFakeFeatured())
	r := newRouter(h)

	body := []byte(`{"event":"payment.succeeded","reference":"pay_1","amount":100}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/epay", bytes.NewReader(body))
	req.Header.Set("X-Gateway-Signature", sign(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Redeliveries must be acked so the gateway stops retrying
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for duplicate, got %d", w.Code)
	}
}

func TestWebhookUnknownProvider(t *testing.T) {
	h := newTestHandler(&fakeLedger{}, newFakeBoost(), newFakeFeatured())
	r := newRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetBalance(t *testing.T) {
	h := newTestHandler(&fakeLedger{}, newFakeBoost(), newFakeFeatured())
	r := newRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/billing/balance", nil, uuid.New()))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			CurrentBalance int64 `json:"current_balance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data.CurrentBalance != 100 {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
}

func TestCreateCampaignFundsFromLedger(t *testing.T) {
	l := &fakeLedger{}
	b := newFakeBoost()
	h := newTestHandler(l, b, newFakeFeatured())
	r := newRouter(h)

	body, _ := json.Marshal(CreateCampaignRequest{PricePerClick: 5, Budget: 50})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/campaigns", body, uuid.New()))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if len(l.debits) != 1 || l.debits[0] != 50 {
		t.Fatalf("expected one debit of 50, got %v", l.debits)
	}

	// The campaign goes live only once the debit has committed
	var resp struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Status != string(boost.StatusActive) {
		t.Fatalf("expected active campaign after funding, got %q", resp.Data.Status)
	}
}

func TestCreateCampaignInsufficientBalance(t *testing.T) {
	l := &fakeLedger{debitErr: ledger.ErrInsufficientBalance}
	b := newFakeBoost()
	h := newTestHandler(l, b, newFakeFeatured())
	r := newRouter(h)

	body, _ := json.Marshal(CreateCampaignRequest{PricePerClick: 5, Budget: 50})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/campaigns", body, uuid.New()))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	// The unfunded campaign must be compensated away, never activated
	if len(b.cancelled) != 1 {
		t.Fatalf("expected 1 compensating cancel, got %d", len(b.cancelled))
	}
	for _, c := range b.campaigns {
		if c.Status == boost.StatusActive || c.Status == boost.StatusPending {
			t.Fatalf("unfunded campaign left in %q", c.Status)
		}
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	h := newTestHandler(&fakeLedger{}, newFakeBoost(), newFakeFeatured())
	r := newRouter(h)

	body, _ := json.Marshal(CreateCampaignRequest{PricePerClick: 0, Budget: 50})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/campaigns", body, uuid.New()))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCampaignOwnershipEnforced(t *testing.T) {
	l := &fakeLedger{}
	b := newFakeBoost()
	h := newTestHandler(l, b, newFakeFeatured())
	r := newRouter(h)

	owner := uuid.New()
	c, err := b.CreateCampaign(context.Background(), owner, 5, 50, boost.Schedule{}, boost.Audience{})
	if err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	if err := b.Activate(context.Background(), c.ID); err != nil {
		t.Fatalf("activate campaign: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/campaigns/"+c.ID.String()+"/cancel", nil, uuid.New()))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if len(l.refunds) != 0 {
		t.Fatal("refund issued for a foreign campaign")
	}
}

func TestCancelCampaignRefunds(t *testing.T) {
	l := &fakeLedger{}
	b := newFakeBoost()
	h := newTestHandler(l, b, newFakeFeatured())
	r := newRouter(h)

	owner := uuid.New()
	c, err := b.CreateCampaign(context.Background(), owner, 5, 50, boost.Schedule{}, boost.Audience{})
	if err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	if err := b.Activate(context.Background(), c.ID); err != nil {
		t.Fatalf("activate campaign: %v", err)
	}
	c.Spent = 20

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/campaigns/"+c.ID.String()+"/cancel", nil, owner))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(l.refunds) != 1 || l.refunds[0] != 30 {
		t.Fatalf("expected refund of 30, got %v", l.refunds)
	}
}

func TestTrackCampaignClick(t *testing.T) {
	b := newFakeBoost()
	h := newTestHandler(&fakeLedger{}, b, newFakeFeatured())
	r := newRouter(h)

	c, err := b.CreateCampaign(context.Background(), uuid.New(), 5, 50, boost.Schedule{}, boost.Audience{})
	if err != nil {
		t.Fatalf("seed campaign: %v", err)
	}
	if err := b.Activate(context.Background(), c.ID); err != nil {
		t.Fatalf("activate campaign: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/track/campaigns/"+c.ID.String()+"/click", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Charged bool `json:"charged"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Data.Charged {
		t.Fatal("expected charged=true")
	}
}

func TestTrackCampaignClickExhausted(t *testing.T) {
	b := newFakeBoost()
	b.chargeErr = boost.ErrBudgetExhausted
	h := newTestHandler(&fakeLedger{}, b, newFakeFeatured())
	r := newRouter(h)

	c, _ := b.CreateCampaign(context.Background(), uuid.New(), 5, 50, boost.Schedule{}, boost.Audience{})
	b.chargeErr = boost.ErrBudgetExhausted

	req := httptest.NewRequest(http.MethodPost, "/track/campaigns/"+c.ID.String()+"/click", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Exhaustion is not a visitor-facing failure
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Data struct {
			Charged bool `json:"charged"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Charged {
		t.Fatal("expected charged=false on exhausted campaign")
	}
}

func TestPayAdDebitsEffectivePrice(t *testing.T) {
	l := &fakeLedger{}
	f := newFakeFeatured()
	h := newTestHandler(l, newFakeBoost(), f)
	r := newRouter(h)

	owner := uuid.New()
	a, err := f.Submit(context.Background(), owner, featured.Creative{Title: "t"}, featured.Schedule{}, []string{"home"}, nil, nil, 300, 0, featured.Caps{})
	if err != nil {
		t.Fatalf("seed ad: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/ads/"+a.ID.String()+"/pay", nil, owner))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(l.debits) != 1 || l.debits[0] != 300 {
		t.Fatalf("expected debit of 300, got %v", l.debits)
	}
}

func TestPayAdRefundsOnMarkPaidFailure(t *testing.T) {
	l := &fakeLedger{}
	f := newFakeFeatured()
	f.markPaidErr = featured.ErrInvalidStateTransition
	h := newTestHandler(l, newFakeBoost(), f)
	r := newRouter(h)

	owner := uuid.New()
	a, _ := f.Submit(context.Background(), owner, featured.Creative{Title: "t"}, featured.Schedule{}, []string{"home"}, nil, nil, 300, 0, featured.Caps{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/ads/"+a.ID.String()+"/pay", nil, owner))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if len(l.refunds) != 1 || l.refunds[0] != 300 {
		t.Fatalf("expected compensating refund of 300, got %v", l.refunds)
	}
}

func TestPayAdRejectedAdNotDebited(t *testing.T) {
	l := &fakeLedger{}
	f := newFakeFeatured()
	h := newTestHandler(l, newFakeBoost(), f)
	r := newRouter(h)

	owner := uuid.New()
	a, _ := f.Submit(context.Background(), owner, featured.Creative{Title: "t"}, featured.Schedule{}, []string{"home"}, nil, nil, 300, 0, featured.Caps{})
	if _, err := f.Reject(context.Background(), a.ID, "creative violates content policy"); err != nil {
		t.Fatalf("seed reject: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/ads/"+a.ID.String()+"/pay", nil, owner))

	// A rejected placement can never serve: no debit, no refund, no mutation
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if len(l.debits) != 0 {
		t.Fatalf("rejected ad reached the ledger: %v", l.debits)
	}
	if len(l.refunds) != 0 {
		t.Fatalf("unexpected refund: %v", l.refunds)
	}
	if a.Status != featured.StatusRejected || a.PaymentStatus == featured.PaymentPaid {
		t.Fatalf("rejected ad mutated: status=%q payment=%q", a.Status, a.PaymentStatus)
	}
}

func TestPayAdForbiddenForNonOwner(t *testing.T) {
	l := &fakeLedger{}
	f := newFakeFeatured()
	h := newTestHandler(l, newFakeBoost(), f)
	r := newRouter(h)

	a, _ := f.Submit(context.Background(), uuid.New(), featured.Creative{Title: "t"}, featured.Schedule{}, []string{"home"}, nil, nil, 300, 0, featured.Caps{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/ads/"+a.ID.String()+"/pay", nil, uuid.New()))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if len(l.debits) != 0 {
		t.Fatal("foreign ad payment reached the ledger")
	}
}

func TestSubmitAdValidation(t *testing.T) {
	h := newTestHandler(&fakeLedger{}, newFakeBoost(), newFakeFeatured())
	r := newRouter(h)

	body, _ := json.Marshal(map[string]interface{}{
		"title":          "Missing placements",
		"placements":     []string{"sidebar"},
		"proposed_price": 100,
		"starts_at":      "2026-09-01T00:00:00Z",
		"ends_at":        "2026-09-10T00:00:00Z",
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/billing/ads", body, uuid.New()))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for invalid placement, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRejectAdRequiresReason(t *testing.T) {
	f := newFakeFeatured()
	h := newTestHandler(&fakeLedger{}, newFakeBoost(), f)
	r := newRouter(h)

	a, _ := f.Submit(context.Background(), uuid.New(), featured.Creative{Title: "t"}, featured.Schedule{}, []string{"home"}, nil, nil, 300, 0, featured.Caps{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodPost, "/admin/ads/"+a.ID.String()+"/reject", []byte(`{}`), uuid.New()))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 without reason, got %d", w.Code)
	}
}

func TestListEligibleAdsRequiresPlacement(t *testing.T) {
	h := newTestHandler(&fakeLedger{}, newFakeBoost(), newFakeFeatured())
	r := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/ads/eligible?placement=sidebar", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown placement, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ads/eligible?placement=home", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}
