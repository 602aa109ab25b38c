package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"givekiosk/billing"
	"givekiosk/catalog"
	"givekiosk/donation"
	"givekiosk/ledger"
	"givekiosk/payment"
	"givekiosk/settings"
)

type fakeAuth struct {
	mu         sync.Mutex
	authorized bool
	code       string
}

func (f *fakeAuth) IsAuthenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authorized
}

func (f *fakeAuth) MerchantID() string {
	if f.IsAuthenticated() {
		return "MERCHANT_1"
	}
	return ""
}

func (f *fakeAuth) AuthURL() string { return "https://connect.example/authorize?state=s1" }

func (f *fakeAuth) HandleCallback(ctx context.Context, state, code string) error {
	if state != "s1" {
		return payment.ErrInvalidState
	}
	f.mu.Lock()
	f.authorized = true
	f.code = code
	f.mu.Unlock()
	return nil
}

func (f *fakeAuth) SignOut() error {
	f.mu.Lock()
	f.authorized = false
	f.mu.Unlock()
	return nil
}

// backend fakes the billing and catalog endpoints.
type backend struct {
	mu      sync.Mutex
	status  billing.Status
	failing bool
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failing {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/stripe/subscription/status":
		json.NewEncoder(w).Encode(billing.Subscription{Status: b.status, PlanType: "monthly", DeviceCount: 1})
	case "/api/stripe/create-checkout-session":
		w.Write([]byte(`{"url":"https://checkout.example/c1","session_id":"cs_1"}`))
	case "/api/stripe/create-portal-session":
		w.Write([]byte(`{"url":"https://billing.example/p1"}`))
	case "/api/stripe/cancel-subscription":
		b.status = billing.StatusCanceled
		w.Write([]byte(`{}`))
	case "/api/stripe/resume-subscription":
		b.status = billing.StatusActive
		w.Write([]byte(`{}`))
	case "/api/catalog/donations":
		w.Write([]byte(`{"items":[{"id":"i1","name":"Meal","amount":"12"},{"id":"i2","name":"Week","amount":"60"}]}`))
	default:
		http.NotFound(w, r)
	}
}

type fixture struct {
	srv     *Server
	store   *settings.Store
	ledger  *ledger.Ledger
	auth    *fakeAuth
	backend *backend
	changes int
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := settings.Open(filepath.Join(dir, "settings.yaml"))
	if err != nil {
		t.Fatalf("settings.Open failed: %v", err)
	}
	store.SetSaveDelay(time.Hour)
	if err := store.SetOrganization(settings.Organization{ID: "org_1", Name: "Food Bank"}); err != nil {
		t.Fatal(err)
	}

	l, err := ledger.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("ledger.Open failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	be := &backend{status: billing.StatusActive}
	api := httptest.NewServer(be)
	t.Cleanup(api.Close)

	bc := billing.NewClient(api.URL, 5*time.Second)
	f := &fixture{store: store, ledger: l, auth: &fakeAuth{}, backend: be}
	f.srv = NewServer(Config{Token: token}, Deps{
		Settings:     store,
		Ledger:       l,
		Billing:      billing.NewStore(bc, func() string { return store.Organization().ID }),
		Checkout:     bc,
		Catalog:      catalog.New(api.URL, filepath.Join(dir, "catalog.txt"), nil),
		Auth:         f.auth,
		OnAuthChange: func() { f.changes++ },
		Status: func(ctx context.Context) Status {
			return Status{State: "idle", Screen: "home", Authorized: f.auth.IsAuthenticated()}
		},
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndToken(t *testing.T) {
	f := newFixture(t, "secret")

	if rec := f.do(t, http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
		t.Errorf("Health: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/settings", ""); rec.Code == http.StatusOK {
		t.Error("Settings without token should be rejected")
	}
	if rec := f.do(t, http.MethodGet, "/api/settings", "", "Authorization", "Bearer wrong"); rec.Code != http.StatusUnauthorized {
		t.Errorf("Wrong token: got %d, want 401", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/settings", "", "Authorization", "Bearer secret"); rec.Code != http.StatusOK {
		t.Errorf("Right token: got %d", rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/api/status", "", "Authorization", "Bearer secret")
	if st := decode[Status](t, rec); st.Screen != "home" {
		t.Errorf("Status = %+v", st)
	}
}

func TestSettingsRoutes(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPut, "/api/settings/organization",
		`{"id":"org_2","name":"Shelter","tax_id":"99-1","receipt_message":"Thanks"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT organization: %d %s", rec.Code, rec.Body.String())
	}
	if got := f.store.Organization(); got.Name != "Shelter" || got.TaxID != "99-1" {
		t.Errorf("Organization = %+v", got)
	}

	// Partial kiosk update keeps the other fields.
	rec = f.do(t, http.MethodPut, "/api/settings/kiosk", `{"max_amount":"500","home_page_enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT kiosk: %d %s", rec.Code, rec.Body.String())
	}
	k := f.store.Kiosk()
	if k.MaxAmount != "500" || k.HomePageEnabled || len(k.Presets) != 4 {
		t.Errorf("Kiosk = %+v", k)
	}

	rec = f.do(t, http.MethodPut, "/api/settings/kiosk", `{"layout":{"zoom":9}}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid zoom: got %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/settings/kiosk", `{"min_amount":"900"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Min above max: got %d, want 400", rec.Code)
	}

	if rec := f.do(t, http.MethodPost, "/api/settings/save", ""); rec.Code != http.StatusOK {
		t.Errorf("Save: %d", rec.Code)
	}

	got := decode[settings.Settings](t, f.do(t, http.MethodGet, "/api/settings", ""))
	if !settings.Equal(got, f.store.Get()) {
		t.Errorf("GET settings = %+v", got)
	}
}

func TestPresetRoutes(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/presets", `{"amount":"-3"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Negative preset: got %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/presets", `{"amount":"250"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Add preset: %d %s", rec.Code, rec.Body.String())
	}
	if rec = f.do(t, http.MethodPost, "/api/presets", `{"amount":"500"}`); rec.Code != http.StatusCreated {
		t.Fatalf("Add sixth preset: %d", rec.Code)
	}
	if rec = f.do(t, http.MethodPost, "/api/presets", `{"amount":"750"}`); rec.Code != http.StatusConflict {
		t.Errorf("Seventh preset: got %d, want 409", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/presets/0", `{"amount":"15","catalog_item_id":"i9"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Update preset: %d %s", rec.Code, rec.Body.String())
	}
	presets := decode[[]settings.Preset](t, rec)
	if presets[0].Amount != "15" || presets[0].CatalogItemID != "i9" {
		t.Errorf("Preset 0 = %+v", presets[0])
	}

	if rec = f.do(t, http.MethodPut, "/api/presets/12", `{"amount":"15"}`); rec.Code != http.StatusNotFound {
		t.Errorf("Out of range: got %d, want 404", rec.Code)
	}
	if rec = f.do(t, http.MethodDelete, "/api/presets/x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Bad index: got %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/presets/0", "")
	if rec.Code != http.StatusOK || len(f.store.Kiosk().Presets) != 5 {
		t.Errorf("Delete preset: %d, %d left", rec.Code, len(f.store.Kiosk().Presets))
	}
}

func TestDonationRoutes(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	day := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for i, amt := range []string{"10", "25.50"} {
		err := f.ledger.Record(ctx, donation.Donation{
			ID:        []string{"d1", "d2"}[i],
			Amount:    decimal.RequireFromString(amt),
			OrderID:   "o",
			CreatedAt: day.Add(time.Duration(i) * 24 * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	list := decode[[]ledger.Donation](t, f.do(t, http.MethodGet, "/api/donations", ""))
	if len(list) != 2 || list[0].ID != "d2" {
		t.Errorf("List = %+v", list)
	}
	list = decode[[]ledger.Donation](t, f.do(t, http.MethodGet, "/api/donations?since=2026-05-05T00:00:00Z", ""))
	if len(list) != 1 {
		t.Errorf("List since = %+v", list)
	}
	if rec := f.do(t, http.MethodGet, "/api/donations?since=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Bad since: %d", rec.Code)
	}

	totals := decode[ledger.Totals](t, f.do(t, http.MethodGet, "/api/donations/totals", ""))
	if totals.Count != 2 || !totals.Amount.Equal(decimal.RequireFromString("35.5")) {
		t.Errorf("Totals = %+v", totals)
	}

	if rec := f.do(t, http.MethodGet, "/api/donations/d1", ""); rec.Code != http.StatusOK {
		t.Errorf("Get d1: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/api/donations/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Get missing: %d", rec.Code)
	}
}

func TestSubscriptionRoutes(t *testing.T) {
	f := newFixture(t, "")

	view := decode[subscriptionResponse](t, f.do(t, http.MethodGet, "/api/subscription", ""))
	if view.Subscription != nil {
		t.Errorf("Expected no subscription before refresh, got %+v", view.Subscription)
	}

	view = decode[subscriptionResponse](t, f.do(t, http.MethodPost, "/api/subscription/refresh", ""))
	if view.Subscription == nil || view.Subscription.Status != billing.StatusActive || !view.Usable {
		t.Fatalf("Refresh = %+v", view)
	}

	view = decode[subscriptionResponse](t, f.do(t, http.MethodPost, "/api/subscription/cancel", ""))
	if view.Subscription.Status != billing.StatusCanceled {
		t.Errorf("Cancel = %+v", view.Subscription)
	}
	view = decode[subscriptionResponse](t, f.do(t, http.MethodPost, "/api/subscription/resume", ""))
	if view.Subscription.Status != billing.StatusActive {
		t.Errorf("Resume = %+v", view.Subscription)
	}

	sess := decode[billing.CheckoutSession](t, f.do(t, http.MethodPost, "/api/subscription/checkout", ""))
	if sess.SessionID != "cs_1" {
		t.Errorf("Checkout = %+v", sess)
	}
	portal := decode[map[string]string](t, f.do(t, http.MethodPost, "/api/subscription/portal", ""))
	if portal["url"] != "https://billing.example/p1" {
		t.Errorf("Portal = %v", portal)
	}

	f.backend.mu.Lock()
	f.backend.failing = true
	f.backend.mu.Unlock()
	if rec := f.do(t, http.MethodPost, "/api/subscription/cancel", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("Failed cancel: got %d, want 502", rec.Code)
	}
	if got := f.srv.deps.Billing.Current(); got.Status != billing.StatusActive {
		t.Errorf("Failed cancel should roll back, got %s", got.Status)
	}
}

func TestSubscriptionWithoutOrganization(t *testing.T) {
	f := newFixture(t, "")
	if err := f.store.SetOrganization(settings.Organization{}); err != nil {
		t.Fatal(err)
	}
	if rec := f.do(t, http.MethodPost, "/api/subscription/checkout", ""); rec.Code != http.StatusPreconditionFailed {
		t.Errorf("Checkout without org: got %d, want 412", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/catalog/refresh", ""); rec.Code != http.StatusPreconditionFailed {
		t.Errorf("Catalog without org: got %d, want 412", rec.Code)
	}
}

func TestSquareRoutes(t *testing.T) {
	f := newFixture(t, "secret")
	bearer := []string{"Authorization", "Bearer secret"}

	rec := f.do(t, http.MethodPost, "/api/square/authorize", "", bearer...)
	if u := decode[map[string]string](t, rec)["url"]; !strings.Contains(u, "state=s1") {
		t.Errorf("Authorize url = %q", u)
	}

	// The provider redirects the browser, which carries no token.
	if rec = f.do(t, http.MethodGet, "/api/square/callback?state=bad&code=c", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Bad state: got %d, want 400", rec.Code)
	}
	if rec = f.do(t, http.MethodGet, "/api/square/callback?error=access_denied", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Declined: got %d, want 400", rec.Code)
	}
	if rec = f.do(t, http.MethodGet, "/api/square/callback?state=s1&code=c1", ""); rec.Code != http.StatusOK {
		t.Fatalf("Callback: %d %s", rec.Code, rec.Body.String())
	}
	if !f.auth.IsAuthenticated() || f.auth.code != "c1" || f.changes != 1 {
		t.Errorf("After callback auth=%v code=%q changes=%d", f.auth.IsAuthenticated(), f.auth.code, f.changes)
	}

	st := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/square", "", bearer...))
	if st["authorized"] != true || st["merchant_id"] != "MERCHANT_1" {
		t.Errorf("Square status = %v", st)
	}

	if rec = f.do(t, http.MethodPost, "/api/square/signout", "", bearer...); rec.Code != http.StatusOK {
		t.Errorf("Sign out: %d", rec.Code)
	}
	if f.auth.IsAuthenticated() || f.changes != 2 {
		t.Error("Sign out did not take effect")
	}
}

func TestCatalogRefreshSyncsPresets(t *testing.T) {
	f := newFixture(t, "")

	rec := f.do(t, http.MethodPost, "/api/catalog/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Refresh: %d %s", rec.Code, rec.Body.String())
	}
	presets := f.store.Kiosk().Presets
	if len(presets) != 2 || presets[0].CatalogItemID != "i1" || presets[1].Amount != "60" {
		t.Errorf("Presets = %+v", presets)
	}
	items := decode[[]catalog.Item](t, f.do(t, http.MethodGet, "/api/catalog", ""))
	if len(items) != 2 {
		t.Errorf("Items = %+v", items)
	}
}

func TestMissingServices(t *testing.T) {
	store, err := settings.Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(Config{}, Deps{Settings: store})

	for _, path := range []string{"/api/donations", "/api/subscription", "/api/catalog", "/api/status"} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: got %d, want 503", path, rec.Code)
		}
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/square", nil))
	if st := decode[map[string]any](t, rec); st["provider"] != "none" {
		t.Errorf("Square status without auth = %v", st)
	}
}

func TestParseSince(t *testing.T) {
	if ts, err := parseSince(""); err != nil || !ts.IsZero() {
		t.Errorf("Empty since = %v, %v", ts, err)
	}
	if ts, err := parseSince("2026-01-02"); err != nil || ts.Day() != 2 {
		t.Errorf("Date since = %v, %v", ts, err)
	}
	if _, err := parseSince("02/01/2026"); err == nil {
		t.Error("Expected error for unknown format")
	}
}
