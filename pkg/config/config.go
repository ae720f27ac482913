package config

import (
	"strings"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/xerrors"
)

// Config holds everything the server needs at startup. Backend selection
// happens once here: when Firebase credentials are present the managed
// datastore surfaces (admin, console links) are wired in addition to the
// relay, which always runs.
type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	CORSHosts string `envconfig:"CORS_HOSTS"`
	HostURL   string `envconfig:"HOST_URL" default:"http://localhost:8080"`

	// Public websocket address handed out in console share links.
	RelayPublicURL string `envconfig:"RELAY_PUBLIC_URL" default:"ws://localhost:8080/relay/v1/ws"`

	FirebaseProjectID       string `envconfig:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsJSON string `envconfig:"FIREBASE_CREDENTIALS_JSON"`

	ResendKey string `envconfig:"RESEND_KEY"`
}

func Load() (Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, xerrors.Errorf("process environment config: %w", err)
	}
	if c.HasFirebase() && c.FirebaseProjectID == "" {
		return Config{}, xerrors.New("FIREBASE_CREDENTIALS_JSON is set but FIREBASE_PROJECT_ID is empty")
	}
	return c, nil
}

// HasFirebase reports whether the managed datastore backend is configured.
func (c Config) HasFirebase() bool {
	return strings.TrimSpace(c.FirebaseCredentialsJSON) != ""
}

func (c Config) AllowedOrigins() []string {
	if strings.TrimSpace(c.CORSHosts) == "" {
		return nil
	}
	return strings.Split(c.CORSHosts, ",")
}
