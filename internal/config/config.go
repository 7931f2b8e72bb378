package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Signing SigningConfig
	PDF     PDFConfig
}

type AppConfig struct {
	Env  string
	Port int

	// CORSOrigins is the allow-list for browser clients. Empty disables CORS headers.
	CORSOrigins []string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

// RedisConfig is optional. When Host is empty the render limiter stays in-process.
type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// SigningConfig is the process-wide signing identity.
// Rotating the identity means replacing the container at KeystorePath.
type SigningConfig struct {
	KeystorePath     string
	KeystorePassword string

	Name        string
	Location    string
	Reason      string
	ContactInfo string
}

type PDFConfig struct {
	// ChromePath is optional; chromedp looks up a local Chrome when empty.
	ChromePath string
	BaseURL    string

	ViewportWidth     int
	ViewportHeight    int
	DeviceScaleFactor float64

	RenderTimeout     time.Duration
	ConcurrentRenders int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.CORSOrigins = splitList(os.Getenv("CORS_ORIGINS"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Signing.KeystorePath = strings.TrimSpace(os.Getenv("SIGNING_KEYSTORE_PATH"))
	c.Signing.KeystorePassword = os.Getenv("SIGNING_KEYSTORE_PASSWORD")
	c.Signing.Name = strings.TrimSpace(os.Getenv("SIGNING_NAME"))
	c.Signing.Location = strings.TrimSpace(os.Getenv("SIGNING_LOCATION"))
	c.Signing.Reason = strings.TrimSpace(os.Getenv("SIGNING_REASON"))
	c.Signing.ContactInfo = strings.TrimSpace(os.Getenv("SIGNING_CONTACT"))

	c.PDF.ChromePath = strings.TrimSpace(os.Getenv("PDF_CHROME_PATH"))
	c.PDF.BaseURL = strings.TrimSpace(os.Getenv("PDF_BASE_URL"))
	{
		n, err := optionalInt("PDF_PAGE_WIDTH")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.PDF.ViewportWidth = n
	}
	{
		n, err := optionalInt("PDF_PAGE_HEIGHT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.PDF.ViewportHeight = n
	}
	{
		n, err := optionalInt("PDF_CONCURRENT_RENDERS")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.PDF.ConcurrentRenders = n
	}
	{
		f, err := optionalFloat("PDF_PAGE_DSF")
		if err != nil {
			parseErrs = append(parseErrs, err)
		}
		c.PDF.DeviceScaleFactor = f
	}
	c.PDF.RenderTimeout = mustDuration("PDF_RENDER_TIMEOUT")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Signing.KeystorePath == "" {
		errs = append(errs, errors.New("SIGNING_KEYSTORE_PATH is required"))
	}
	if c.IsProduction() && c.Signing.KeystorePassword == "" {
		errs = append(errs, errors.New("SIGNING_KEYSTORE_PASSWORD is required in production"))
	}

	c.PDF = c.PDF.withDefaults()
	if c.PDF.DeviceScaleFactor < 0 {
		errs = append(errs, fmt.Errorf("PDF_PAGE_DSF must be positive, got %v", c.PDF.DeviceScaleFactor))
	}

	return joinErrors(errs)
}

// withDefaults fills unset render settings: a 1600x1200 viewport at 2x scale, a 45s
// per-attempt timeout and one concurrent render.
func (p PDFConfig) withDefaults() PDFConfig {
	out := p
	if out.ViewportWidth <= 0 {
		out.ViewportWidth = 1600
	}
	if out.ViewportHeight <= 0 {
		out.ViewportHeight = 1200
	}
	if out.DeviceScaleFactor == 0 {
		out.DeviceScaleFactor = 2
	}
	if out.RenderTimeout <= 0 {
		out.RenderTimeout = 45 * time.Second
	}
	if out.ConcurrentRenders <= 0 {
		out.ConcurrentRenders = 1
	}
	return out
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(key string) (int, error) {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0, nil
	}
	return mustInt(key)
}

func optionalFloat(key string) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
