package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:     AppConfig{Env: "local", Port: 8080},
		DB:      DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "passport"},
		Auth:    AuthConfig{JWTSecret: "secret"},
		Signing: SigningConfig{KeystorePath: "docs/keystore.p12", KeystorePassword: "password"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_KeystorePathRequired(t *testing.T) {
	c := validConfig()
	c.Signing.KeystorePath = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing SIGNING_KEYSTORE_PATH")
	}
}

func TestValidate_ProductionRequiresKeystorePassword(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.DB.SSLMode = "require"
	c.Auth.JWTIssuer = "iss"
	c.Auth.JWTAudience = "aud"
	c.Signing.KeystorePassword = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without keystore password")
	}
}

func TestValidate_PDFDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.PDF.ViewportWidth != 1600 || c.PDF.ViewportHeight != 1200 {
		t.Fatalf("unexpected viewport %dx%d", c.PDF.ViewportWidth, c.PDF.ViewportHeight)
	}
	if c.PDF.DeviceScaleFactor != 2 {
		t.Fatalf("expected dsf 2, got %v", c.PDF.DeviceScaleFactor)
	}
	if c.PDF.RenderTimeout != 45*time.Second {
		t.Fatalf("expected 45s render timeout, got %v", c.PDF.RenderTimeout)
	}
	if c.PDF.ConcurrentRenders != 1 {
		t.Fatalf("expected 1 concurrent render, got %d", c.PDF.ConcurrentRenders)
	}
}

func TestValidate_RedisOptional(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c.RedisEnabled() {
		t.Fatalf("expected redis disabled without REDIS_HOST")
	}

	c.Redis.Host = "localhost"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for redis host without port")
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "passport")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SIGNING_KEYSTORE_PATH", "/etc/passport/keystore.p12")
	t.Setenv("PDF_PAGE_DSF", "1.5")
	t.Setenv("PDF_RENDER_TIMEOUT", "10s")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.PDF.DeviceScaleFactor != 1.5 {
		t.Fatalf("expected dsf 1.5, got %v", c.PDF.DeviceScaleFactor)
	}
	if c.PDF.RenderTimeout != 10*time.Second {
		t.Fatalf("expected 10s, got %v", c.PDF.RenderTimeout)
	}
}

func TestLoad_RejectsBadNumber(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("APP_PORT", "8080")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_NAME", "passport")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SIGNING_KEYSTORE_PATH", "/etc/passport/keystore.p12")
	t.Setenv("PDF_PAGE_WIDTH", "wide")

	if _, err := Load(); err == nil {
		t.Fatalf("expected parse error for PDF_PAGE_WIDTH")
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example, ,https://b.example ")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", got)
	}
	if splitList("") != nil {
		t.Fatalf("expected nil for empty input")
	}
}
