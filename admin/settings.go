package admin

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"givekiosk/settings"
)

func (s *Server) getSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Settings.Get())
}

func (s *Server) putSettings(c echo.Context) error {
	var in settings.Settings
	if err := c.Bind(&in); err != nil {
		return err
	}
	err := s.deps.Settings.Update(func(st *settings.Settings) error {
		*st = in
		return nil
	})
	if err != nil {
		return settingsError(err)
	}
	return c.JSON(http.StatusOK, s.deps.Settings.Get())
}

func (s *Server) saveSettings(c echo.Context) error {
	if err := s.deps.Settings.Save(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) getOrganization(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Settings.Organization())
}

func (s *Server) putOrganization(c echo.Context) error {
	var in settings.Organization
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := s.deps.Settings.SetOrganization(in); err != nil {
		return settingsError(err)
	}
	return c.JSON(http.StatusOK, s.deps.Settings.Organization())
}

func (s *Server) getKiosk(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Settings.Kiosk())
}

func (s *Server) putKiosk(c echo.Context) error {
	in := s.deps.Settings.Kiosk()
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := s.deps.Settings.SetKiosk(in); err != nil {
		return settingsError(err)
	}
	return c.JSON(http.StatusOK, s.deps.Settings.Kiosk())
}

func (s *Server) listPresets(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Settings.Kiosk().Presets)
}

func (s *Server) addPreset(c echo.Context) error {
	var in settings.Preset
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := s.deps.Settings.AddPreset(in); err != nil {
		return settingsError(err)
	}
	return c.JSON(http.StatusCreated, s.deps.Settings.Kiosk().Presets)
}

func (s *Server) updatePreset(c echo.Context) error {
	i, err := presetIndex(c)
	if err != nil {
		return err
	}
	var in settings.Preset
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := s.deps.Settings.UpdatePreset(i, in); err != nil {
		return settingsError(err)
	}
	return c.JSON(http.StatusOK, s.deps.Settings.Kiosk().Presets)
}

func (s *Server) removePreset(c echo.Context) error {
	i, err := presetIndex(c)
	if err != nil {
		return err
	}
	if err := s.deps.Settings.RemovePreset(i); err != nil {
		return settingsError(err)
	}
	return c.JSON(http.StatusOK, s.deps.Settings.Kiosk().Presets)
}

func presetIndex(c echo.Context) (int, error) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "preset index must be a number")
	}
	return i, nil
}
