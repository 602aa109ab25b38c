package admin

import (
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"givekiosk/billing"
)

type subscriptionResponse struct {
	Subscription *billing.Subscription `json:"subscription"`
	Usable       bool                  `json:"usable"`
	RefreshedAt  *time.Time            `json:"refreshed_at,omitempty"`
	Error        string                `json:"error,omitempty"`
}

func (s *Server) subscriptionView() subscriptionResponse {
	sub := s.deps.Billing.Current()
	out := subscriptionResponse{Subscription: sub}
	if sub != nil {
		out.Usable = sub.Usable()
	}
	if t := s.deps.Billing.RefreshedAt(); !t.IsZero() {
		out.RefreshedAt = &t
	}
	if err := s.deps.Billing.LastError(); err != nil {
		out.Error = err.Error()
	}
	return out
}

func (s *Server) getSubscription(c echo.Context) error {
	if s.deps.Billing == nil {
		return unavailable("billing")
	}
	return c.JSON(http.StatusOK, s.subscriptionView())
}

func (s *Server) refreshSubscription(c echo.Context) error {
	if s.deps.Billing == nil {
		return unavailable("billing")
	}
	if _, err := s.deps.Billing.Refresh(c.Request().Context()); err != nil {
		return upstreamError("refresh subscription", err)
	}
	return c.JSON(http.StatusOK, s.subscriptionView())
}

func (s *Server) checkout(c echo.Context) error {
	if s.deps.Checkout == nil {
		return unavailable("billing")
	}
	org := s.deps.Settings.Organization()
	sess, err := s.deps.Checkout.CreateCheckoutSession(c.Request().Context(), org.ID, org.MerchantEmail)
	if err != nil {
		return upstreamError("create checkout session", err)
	}
	return c.JSON(http.StatusOK, sess)
}

func (s *Server) portal(c echo.Context) error {
	if s.deps.Checkout == nil {
		return unavailable("billing")
	}
	url, err := s.deps.Checkout.CreatePortalSession(c.Request().Context(), s.deps.Settings.Organization().ID)
	if err != nil {
		return upstreamError("create portal session", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": url})
}

func (s *Server) cancelSubscription(c echo.Context) error {
	if s.deps.Billing == nil {
		return unavailable("billing")
	}
	if err := s.deps.Billing.Cancel(c.Request().Context()); err != nil {
		return upstreamError("cancel subscription", err)
	}
	return c.JSON(http.StatusOK, s.subscriptionView())
}

func (s *Server) resumeSubscription(c echo.Context) error {
	if s.deps.Billing == nil {
		return unavailable("billing")
	}
	if err := s.deps.Billing.Resume(c.Request().Context()); err != nil {
		return upstreamError("resume subscription", err)
	}
	return c.JSON(http.StatusOK, s.subscriptionView())
}

func (s *Server) squareStatus(c echo.Context) error {
	if s.deps.Auth == nil {
		return c.JSON(http.StatusOK, map[string]any{"authorized": true, "provider": "none"})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"authorized":  s.deps.Auth.IsAuthenticated(),
		"merchant_id": s.deps.Auth.MerchantID(),
		"provider":    "square",
	})
}

func (s *Server) squareAuthorize(c echo.Context) error {
	if s.deps.Auth == nil {
		return unavailable("payment provider sign-in")
	}
	return c.JSON(http.StatusOK, map[string]string{"url": s.deps.Auth.AuthURL()})
}

// squareCallback is where the provider sends the operator's browser
// after sign-in.
func (s *Server) squareCallback(c echo.Context) error {
	if s.deps.Auth == nil {
		return unavailable("payment provider sign-in")
	}
	if msg := c.QueryParam("error"); msg != "" {
		log.Printf("Admin: square sign-in declined: %s", msg)
		return c.String(http.StatusBadRequest, "Sign-in was not completed: "+msg)
	}
	err := s.deps.Auth.HandleCallback(c.Request().Context(), c.QueryParam("state"), c.QueryParam("code"))
	if err != nil {
		return upstreamError("square sign-in", err)
	}
	s.authChanged()
	return c.String(http.StatusOK, "Kiosk connected. You can close this page.")
}

func (s *Server) squareSignOut(c echo.Context) error {
	if s.deps.Auth == nil {
		return unavailable("payment provider sign-in")
	}
	if err := s.deps.Auth.SignOut(); err != nil {
		return err
	}
	s.authChanged()
	return c.JSON(http.StatusOK, map[string]string{"status": "signed out"})
}

func (s *Server) authChanged() {
	if s.deps.OnAuthChange != nil {
		s.deps.OnAuthChange()
	}
}

func (s *Server) catalogItems(c echo.Context) error {
	if s.deps.Catalog == nil {
		return unavailable("catalog")
	}
	return c.JSON(http.StatusOK, s.deps.Catalog.Items())
}

func (s *Server) refreshCatalog(c echo.Context) error {
	if s.deps.Catalog == nil {
		return unavailable("catalog")
	}
	if err := s.deps.Catalog.Fetch(c.Request().Context(), s.deps.Settings.Organization().ID); err != nil {
		return upstreamError("fetch catalog", err)
	}
	if err := s.deps.Catalog.SyncPresets(s.deps.Settings); err != nil {
		return settingsError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"items":   s.deps.Catalog.Items(),
		"presets": s.deps.Settings.Kiosk().Presets,
	})
}
