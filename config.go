package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"givekiosk/admin"
	"givekiosk/buttons"
	"givekiosk/chime"
	"givekiosk/eventpipe"
	"givekiosk/indicator"
	"givekiosk/keypad"
	"givekiosk/ledger"
	"givekiosk/mqtt"
	"givekiosk/payment"
	"givekiosk/printer"
	"givekiosk/rotary"
	"givekiosk/video"
)

// Config is the main configuration structure for givekiosk.
type Config struct {
	// MQTT connection settings
	MQTT mqtt.Config `yaml:"mqtt"`

	// Backend serving receipts, billing and the catalog
	API APIConfig `yaml:"api" envPrefix:"API_"`

	// Card payments
	Payment payment.Config `yaml:"payment"`

	// Donor input devices
	Keypad  keypad.Config  `yaml:"keypad"`
	Rotary  rotary.Config  `yaml:"rotary"`
	Buttons buttons.Config `yaml:"buttons"`

	// Outputs
	Indicator indicator.Config `yaml:"indicator"`
	Chime     chime.Config     `yaml:"chime"`
	Printer   printer.Config   `yaml:"printer"`
	Video     video.Config     `yaml:"video"`

	Ledger    ledger.Config    `yaml:"ledger"`
	EventPipe eventpipe.Config `yaml:"event_pipe"`
	Admin     admin.Config     `yaml:"admin"`

	// General settings
	ClientID      string `yaml:"client_id" env:"CLIENT_ID"`
	SettingsFile  string `yaml:"settings_file"`
	CatalogFile   string `yaml:"catalog_file"`
	ControlSecret string `yaml:"control_secret" env:"CONTROL_SECRET"` // base64 HMAC key for signed MQTT resets
	AuthHint      string `yaml:"auth_hint"`
	PingSecs      int    `yaml:"ping_secs"`
	RefreshMins   int    `yaml:"refresh_mins"` // catalog and subscription poll, 0 disables
}

// APIConfig holds API backend settings.
type APIConfig struct {
	URL         string `yaml:"url" env:"URL"`
	CAFile      string `yaml:"ca_file"`
	Username    string `yaml:"username" env:"USERNAME"`
	Password    string `yaml:"password" env:"PASSWORD"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

func defaultConfig() Config {
	return Config{
		SettingsFile: "/var/lib/givekiosk/settings.yaml",
		CatalogFile:  "/var/lib/givekiosk/catalog.txt",
		Ledger:       ledger.Config{Path: "/var/lib/givekiosk/ledger.db"},
		AuthHint:     "Open the admin page to connect a card reader.",
		PingSecs:     120,
		RefreshMins:  60,
	}
}

// loadConfig reads the YAML file, then overlays secrets from the
// environment. A .env file next to the config, or in the working
// directory, is loaded first when present.
func loadConfig(path string) (*Config, error) {
	for _, f := range []string{filepath.Join(filepath.Dir(path), ".env"), ".env"} {
		if err := godotenv.Load(f); err == nil {
			log.Printf("Loaded environment from %s", f)
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := defaultConfig()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "GIVEKIOSK_"}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.ClientID == "" {
		return nil, errors.New("client_id missing in config file")
	}
	if cfg.API.URL == "" {
		return nil, errors.New("api.url missing in config file")
	}
	return &cfg, nil
}
