package admin

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"givekiosk/billing"
	"givekiosk/catalog"
	"givekiosk/ledger"
	"givekiosk/payment"
	"givekiosk/settings"
)

func unavailable(what string) error {
	return echo.NewHTTPError(http.StatusServiceUnavailable, what+" not configured")
}

func badRequest(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// settingsError maps a rejected settings change. Anything that is not a
// known sentinel failed validation.
func settingsError(err error) error {
	switch {
	case errors.Is(err, settings.ErrTooManyPresets):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, settings.ErrPresetIndex):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		return badRequest(err)
	}
}

// upstreamError maps a failed call to the backend or payment provider.
func upstreamError(op string, err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound), errors.Is(err, billing.ErrNoSubscription):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, billing.ErrNoOrganization), errors.Is(err, catalog.ErrNoOrganization):
		return echo.NewHTTPError(http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, payment.ErrInvalidState):
		return badRequest(err)
	}
	log.Printf("Admin: %s: %v", op, err)
	return echo.NewHTTPError(http.StatusBadGateway, op+" failed")
}
