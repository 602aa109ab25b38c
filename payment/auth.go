package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	squareProductionURL = "https://connect.squareup.com"
	squareSandboxURL    = "https://connect.squareupsandbox.com"

	// stateTTL bounds how long an authorize link stays usable.
	stateTTL = 10 * time.Minute
)

var ErrInvalidState = errors.New("unknown or expired oauth state")

var squareScopes = []string{
	"MERCHANT_PROFILE_READ",
	"PAYMENTS_READ",
	"PAYMENTS_WRITE",
	"DEVICES_READ",
	"ITEMS_READ",
}

// Auth is the merchant's OAuth session with Square.
//
// The authorize URL comes from golang.org/x/oauth2; code exchange and
// refresh post JSON because Square's token endpoint does not accept
// form-encoded bodies.
type Auth struct {
	mu         sync.Mutex
	oauth      *oauth2.Config
	baseURL    string
	tokenFile  string
	token      *oauth2.Token
	merchantID string
	states     map[string]time.Time
	httpClient *http.Client
}

// NewAuth creates the OAuth session and loads any saved token.
func NewAuth(cfg Config) (*Auth, error) {
	base := cfg.BaseURL
	if base == "" {
		base = squareProductionURL
		if cfg.Environment != "production" {
			base = squareSandboxURL
		}
	}
	base = strings.TrimRight(base, "/")

	a := &Auth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       squareScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/oauth2/authorize",
				TokenURL: base + "/oauth2/token",
			},
		},
		baseURL:    base,
		tokenFile:  cfg.TokenFile,
		states:     make(map[string]time.Time),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}

	if err := a.load(); err != nil {
		return nil, err
	}
	return a, nil
}

// BaseURL returns the Square API host in use.
func (a *Auth) BaseURL() string {
	return a.baseURL
}

// IsAuthenticated reports whether a usable token is held. An expired
// token with a refresh token still counts.
func (a *Auth) IsAuthenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return false
	}
	return a.token.Valid() || a.token.RefreshToken != ""
}

// MerchantID returns the merchant that authorized the kiosk, if known.
func (a *Auth) MerchantID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.merchantID
}

// AuthURL returns a fresh authorize link for the operator.
func (a *Auth) AuthURL() string {
	state := uuid.NewString()

	a.mu.Lock()
	now := time.Now()
	for s, exp := range a.states {
		if now.After(exp) {
			delete(a.states, s)
		}
	}
	a.states[state] = now.Add(stateTTL)
	a.mu.Unlock()

	return a.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("session", "false"))
}

// HandleCallback verifies state and exchanges code for a token.
func (a *Auth) HandleCallback(ctx context.Context, state, code string) error {
	a.mu.Lock()
	exp, ok := a.states[state]
	delete(a.states, state)
	a.mu.Unlock()
	if !ok || time.Now().After(exp) {
		return ErrInvalidState
	}
	if code == "" {
		return fmt.Errorf("missing authorization code")
	}

	tok, merchant, err := a.obtain(ctx, map[string]string{
		"client_id":     a.oauth.ClientID,
		"client_secret": a.oauth.ClientSecret,
		"code":          code,
		"grant_type":    "authorization_code",
		"redirect_uri":  a.oauth.RedirectURL,
	})
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	a.mu.Lock()
	a.token = tok
	a.merchantID = merchant
	a.mu.Unlock()

	log.Printf("Payment: authorized merchant %s", merchant)
	return a.save()
}

// SignOut forgets the stored token.
func (a *Auth) SignOut() error {
	a.mu.Lock()
	a.token = nil
	a.merchantID = ""
	a.mu.Unlock()

	if a.tokenFile == "" {
		return nil
	}
	if err := os.Remove(a.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// Client returns an HTTP client that authorizes requests with the
// merchant token, refreshing it when needed.
func (a *Auth) Client(ctx context.Context) (*http.Client, error) {
	a.mu.Lock()
	tok := a.token
	a.mu.Unlock()
	if tok == nil {
		return nil, ErrNotAuthenticated
	}

	src := oauth2.ReuseTokenSource(tok, &refresher{auth: a, ctx: ctx})
	return oauth2.NewClient(ctx, src), nil
}

type refresher struct {
	auth *Auth
	ctx  context.Context
}

// Token implements oauth2.TokenSource.
func (r *refresher) Token() (*oauth2.Token, error) {
	a := r.auth
	a.mu.Lock()
	cur := a.token
	a.mu.Unlock()
	if cur == nil {
		return nil, ErrNotAuthenticated
	}
	if cur.Valid() {
		return cur, nil
	}
	if cur.RefreshToken == "" {
		return nil, ErrNotAuthenticated
	}

	tok, merchant, err := a.obtain(r.ctx, map[string]string{
		"client_id":     a.oauth.ClientID,
		"client_secret": a.oauth.ClientSecret,
		"refresh_token": cur.RefreshToken,
		"grant_type":    "refresh_token",
	})
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = cur.RefreshToken
	}

	a.mu.Lock()
	a.token = tok
	if merchant != "" {
		a.merchantID = merchant
	}
	a.mu.Unlock()

	if err := a.save(); err != nil {
		log.Printf("Payment: save refreshed token: %v", err)
	}
	return tok, nil
}

type obtainTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    string `json:"expires_at"`
	MerchantID   string `json:"merchant_id"`
	RefreshToken string `json:"refresh_token"`
}

func (a *Auth) obtain(ctx context.Context, body map[string]string) (*oauth2.Token, string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.oauth.Endpoint.TokenURL, bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Square-Version", squareVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("token endpoint %d: %s", resp.StatusCode, string(b))
	}

	var r obtainTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, "", fmt.Errorf("decode token response: %w", err)
	}
	if r.AccessToken == "" {
		return nil, "", fmt.Errorf("token response without access_token")
	}

	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresAt != "" {
		if exp, err := time.Parse(time.RFC3339, r.ExpiresAt); err == nil {
			tok.Expiry = exp
		}
	}
	return tok, r.MerchantID, nil
}

type savedToken struct {
	Token      *oauth2.Token `json:"token"`
	MerchantID string        `json:"merchant_id"`
}

func (a *Auth) load() error {
	if a.tokenFile == "" {
		return nil
	}
	data, err := os.ReadFile(a.tokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token file: %w", err)
	}

	var st savedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode token file: %w", err)
	}
	a.token = st.Token
	a.merchantID = st.MerchantID
	return nil
}

func (a *Auth) save() error {
	if a.tokenFile == "" {
		return nil
	}

	a.mu.Lock()
	st := savedToken{Token: a.token, MerchantID: a.merchantID}
	a.mu.Unlock()

	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(a.tokenFile), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	tmp := a.tokenFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return os.Rename(tmp, a.tokenFile)
}
