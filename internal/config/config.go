// Package config loads the process-wide configuration from the
// environment. There is no CLI surface (spec.md §6): every identifier the
// service needs is an env var, validated once at startup.
package config

import (
	"fmt"
	"os"
)

// Config holds every environment-derived setting the service needs.
type Config struct {
	// Env is "dev" to relax startup validation and enable console logging;
	// anything else (including unset) runs in production mode.
	Env string

	// DatabaseURL is the Postgres connection string backing the global
	// store (tokens, codes, action secrets, connected flags) and the
	// tenant registry.
	DatabaseURL string

	// HTTPAddr is the listen address for the HTTP server.
	HTTPAddr string

	// ServiceKey gates IFTTT-Service-Key-protected routes (status,
	// test/setup).
	ServiceKey string

	// HMACSecret signs and verifies bearer tokens (spec.md §4.3/§6).
	HMACSecret string

	// OAuthClientID/OAuthClientSecret are compared (constant-time)
	// against the client_id/client_secret supplied to /oauth/token.
	OAuthClientID     string
	OAuthClientSecret string

	// DemoPassword gates the demo tenant's static login form (spec.md §4.3).
	DemoPassword string

	// OriginHostTemplate is a fmt template with one %s that the subdomain
	// is formatted into to give a tenant's origin host, e.g.
	// "%s.tunnels.example.com".
	OriginHostTemplate string

	// RealtimeURL is IFTTT's realtime notification endpoint.
	RealtimeURL string

	// DemoLoginURL is where /oauth/authorize redirects the demo tenant
	// instead of a real tunnel's /ifttt/authorize page.
	DemoLoginURL string
}

// env returns the value of k, or def if unset or empty.
func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Load reads Config from the environment and validates required fields.
// In dev mode (ENV=dev) missing secrets are filled with insecure defaults
// instead of failing, mirroring the teacher's DevMode carve-out.
func Load() (Config, error) {
	cfg := Config{
		Env:                env("ENV", ""),
		DatabaseURL:        env("DATABASE_URL", ""),
		HTTPAddr:           env("HTTP_ADDR", ":8080"),
		ServiceKey:         env("SERVICE_KEY", ""),
		HMACSecret:         env("HMAC_SECRET", ""),
		OAuthClientID:      env("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret:  env("OAUTH_CLIENT_SECRET", ""),
		DemoPassword:       env("DEMO_PASSWORD", ""),
		OriginHostTemplate: env("ORIGIN_HOST", ""),
		RealtimeURL:        env("REALTIME_URL", ""),
		DemoLoginURL:       env("DEMO_LOGIN_URL", ""),
	}

	isDev := cfg.Env == "dev"

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	if isDev {
		if cfg.ServiceKey == "" {
			cfg.ServiceKey = "dev-service-key"
		}
		if cfg.HMACSecret == "" {
			cfg.HMACSecret = "dev-hmac-secret-change-in-production"
		}
		if cfg.OAuthClientID == "" {
			cfg.OAuthClientID = "dev-client"
		}
		if cfg.OAuthClientSecret == "" {
			cfg.OAuthClientSecret = "dev-client-secret"
		}
		if cfg.DemoPassword == "" {
			cfg.DemoPassword = "demo"
		}
		if cfg.OriginHostTemplate == "" {
			cfg.OriginHostTemplate = "%s.tunnel.localhost"
		}
		if cfg.DemoLoginURL == "" {
			cfg.DemoLoginURL = "http://localhost:8080/demo/login"
		}
		return cfg, nil
	}

	missing := []string{}
	if cfg.ServiceKey == "" {
		missing = append(missing, "SERVICE_KEY")
	}
	if cfg.HMACSecret == "" {
		missing = append(missing, "HMAC_SECRET")
	}
	if cfg.OAuthClientID == "" {
		missing = append(missing, "OAUTH_CLIENT_ID")
	}
	if cfg.OAuthClientSecret == "" {
		missing = append(missing, "OAUTH_CLIENT_SECRET")
	}
	if cfg.DemoPassword == "" {
		missing = append(missing, "DEMO_PASSWORD")
	}
	if cfg.OriginHostTemplate == "" {
		missing = append(missing, "ORIGIN_HOST")
	}
	if cfg.DemoLoginURL == "" {
		missing = append(missing, "DEMO_LOGIN_URL")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %v", missing)
	}

	return cfg, nil
}
