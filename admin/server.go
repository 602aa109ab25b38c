package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"givekiosk/billing"
	"givekiosk/catalog"
	"givekiosk/ledger"
	"givekiosk/settings"
)

// Config holds the admin API settings.
type Config struct {
	Listen string `yaml:"listen"` // e.g. "127.0.0.1:8080"; empty disables the API
	Token  string `yaml:"token" env:"ADMIN_TOKEN"`
}

// OAuth is the payment provider sign-in used by the onboarding routes.
type OAuth interface {
	IsAuthenticated() bool
	MerchantID() string
	AuthURL() string
	HandleCallback(ctx context.Context, state, code string) error
	SignOut() error
}

// Status is the live kiosk state reported by GET /api/status.
type Status struct {
	State        string `json:"state"`
	Screen       string `json:"screen"`
	Authorized   bool   `json:"authorized"`
	Reader       bool   `json:"reader_connected"`
	Subscription string `json:"subscription,omitempty"`
}

// Deps are the services behind the API. Ledger, Auth, Catalog and Status
// may be nil; their routes then answer 503.
type Deps struct {
	Settings *settings.Store
	Ledger   *ledger.Ledger
	Billing  *billing.Store
	Checkout *billing.Client
	Catalog  *catalog.Manager
	Auth     OAuth
	Status   func(ctx context.Context) Status

	// OnAuthChange is called after the merchant signs in or out.
	OnAuthChange func()
}

type Server struct {
	echo *echo.Echo
	deps Deps
}

// NewServer builds the API. Routes other than health and the OAuth
// callback require the bearer token when one is configured.
func NewServer(cfg Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	s := &Server{echo: e, deps: deps}
	s.setupRoutes(cfg.Token)
	return s
}

func (s *Server) setupRoutes(token string) {
	api := s.echo.Group("/api")

	// Routes added before the key check stay public.
	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	api.GET("/square/callback", s.squareCallback)

	if token != "" {
		api.Use(middleware.KeyAuth(func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1, nil
		}))
	}

	api.GET("/status", s.status)

	// -------- settings --------
	api.GET("/settings", s.getSettings)
	api.PUT("/settings", s.putSettings)
	api.POST("/settings/save", s.saveSettings)
	api.GET("/settings/organization", s.getOrganization)
	api.PUT("/settings/organization", s.putOrganization)
	api.GET("/settings/kiosk", s.getKiosk)
	api.PUT("/settings/kiosk", s.putKiosk)

	api.GET("/presets", s.listPresets)
	api.POST("/presets", s.addPreset)
	api.PUT("/presets/:index", s.updatePreset)
	api.DELETE("/presets/:index", s.removePreset)

	// -------- ledger --------
	api.GET("/donations", s.listDonations)
	api.GET("/donations/totals", s.donationTotals)
	api.GET("/donations/:id", s.getDonation)

	// -------- billing --------
	sub := api.Group("/subscription")
	sub.GET("", s.getSubscription)
	sub.POST("/refresh", s.refreshSubscription)
	sub.POST("/checkout", s.checkout)
	sub.POST("/portal", s.portal)
	sub.POST("/cancel", s.cancelSubscription)
	sub.POST("/resume", s.resumeSubscription)

	// -------- payment provider --------
	api.GET("/square", s.squareStatus)
	api.POST("/square/authorize", s.squareAuthorize)
	api.POST("/square/signout", s.squareSignOut)

	// -------- catalog --------
	api.GET("/catalog", s.catalogItems)
	api.POST("/catalog/refresh", s.refreshCatalog)
}

// ServeHTTP lets the server be mounted or tested without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on address until Shutdown.
func (s *Server) Start(address string) error {
	log.Printf("Admin API listening on %s", address)
	err := s.echo.Start(address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) status(c echo.Context) error {
	if s.deps.Status == nil {
		return unavailable("status")
	}
	return c.JSON(http.StatusOK, s.deps.Status(c.Request().Context()))
}
