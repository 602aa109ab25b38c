package admin

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"givekiosk/ledger"
)

// parseSince accepts an RFC 3339 timestamp or a date. Empty means all time.
func parseSince(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("since must be RFC 3339 or YYYY-MM-DD")
	}
	return t, nil
}

func (s *Server) listDonations(c echo.Context) error {
	if s.deps.Ledger == nil {
		return unavailable("ledger")
	}
	since, err := parseSince(c.QueryParam("since"))
	if err != nil {
		return badRequest(err)
	}
	f := ledger.Filter{Since: since}
	if v := c.QueryParam("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive number")
		}
	}

	list, err := s.deps.Ledger.List(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) getDonation(c echo.Context) error {
	if s.deps.Ledger == nil {
		return unavailable("ledger")
	}
	d, err := s.deps.Ledger.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return upstreamError("get donation", err)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) donationTotals(c echo.Context) error {
	if s.deps.Ledger == nil {
		return unavailable("ledger")
	}
	since, err := parseSince(c.QueryParam("since"))
	if err != nil {
		return badRequest(err)
	}
	totals, err := s.deps.Ledger.Totals(c.Request().Context(), since)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, totals)
}
