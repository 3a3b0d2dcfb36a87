package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr        = ":8080"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultShutdownTimeout   = 20 * time.Second
	defaultAccessTokenTTL    = 15 * time.Minute
	defaultRefreshTokenTTL   = 7 * 24 * time.Hour
	defaultMaxRefreshTokens  = 5
	defaultEarnRate          = 100
	defaultRedeemValue       = 1
	defaultPickupLeadMinutes = 30

	secretScheme = "secret://"
)

// Config aggregates every runtime setting the API consumes.
type Config struct {
	Environment   string
	Server        ServerConfig
	Firestore     FirestoreConfig
	Auth          AuthConfig
	Loyalty       LoyaltyConfig
	Notifications NotificationConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// FirestoreConfig holds document store connectivity settings.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// AuthConfig holds token issuance settings. Secrets may be provided as
// secret:// references resolved at load time.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	MaxRefreshTokens   int
}

// LoyaltyConfig holds the fixed loyalty conversion rates. EarnRate is the
// number of currency units that earn one point; RedeemValue is the currency
// value of one redeemed point.
type LoyaltyConfig struct {
	EarnRate    int64
	RedeemValue int64
}

// NotificationConfig holds the Pub/Sub notification topic and the shop's
// admin contact address.
type NotificationConfig struct {
	TopicID           string
	AdminEmail        string
	PickupLeadMinutes int
}

// SecretResolver resolves secret:// references into their plaintext values.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to the SecretResolver interface.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret implements SecretResolver.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError reports configuration fields that failed validation.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid fields: %s", strings.Join(e.fields, ", "))
}

// Fields returns the names of the invalid fields.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Option customises the loader.
type Option func(*loaderOptions)

type loaderOptions struct {
	envOverrides map[string]string
	skipSystem   bool
	resolver     SecretResolver
}

// WithEnvMap overlays the given values on top of the system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		if o.envOverrides == nil {
			o.envOverrides = map[string]string{}
		}
		for k, v := range values {
			o.envOverrides[k] = v
		}
	}
}

// WithoutSystemEnv ignores the process environment; only WithEnvMap values
// are consulted. Intended for tests.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.skipSystem = true
	}
}

// WithSecretResolver installs the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.resolver = resolver
	}
}

var errSecretResolverNotConfigured = errors.New("config: secret resolver not configured")

// Load reads configuration from the environment, applies defaults, resolves
// secret references, and validates the result.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	lookup := func(key string) (string, bool) {
		if options.envOverrides != nil {
			if v, ok := options.envOverrides[key]; ok {
				return v, true
			}
		}
		if options.skipSystem {
			return "", false
		}
		return os.LookupEnv(key)
	}

	cfg := Config{
		Environment: stringWithDefault(lookup, "ENVIRONMENT", "local"),
		Server: ServerConfig{
			ListenAddr:      stringWithDefault(lookup, "LISTEN_ADDR", defaultListenAddr),
			ReadTimeout:     durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
		},
		Auth: AuthConfig{
			AccessTokenSecret:  stringWithDefault(lookup, "ACCESS_TOKEN_SECRET", ""),
			RefreshTokenSecret: stringWithDefault(lookup, "REFRESH_TOKEN_SECRET", ""),
			AccessTokenTTL:     durationWithDefault(lookup, "ACCESS_TOKEN_TTL", defaultAccessTokenTTL),
			RefreshTokenTTL:    durationWithDefault(lookup, "REFRESH_TOKEN_TTL", defaultRefreshTokenTTL),
			MaxRefreshTokens:   intWithDefault(lookup, "MAX_REFRESH_TOKENS", defaultMaxRefreshTokens),
		},
		Loyalty: LoyaltyConfig{
			EarnRate:    int64WithDefault(lookup, "LOYALTY_EARN_RATE", defaultEarnRate),
			RedeemValue: int64WithDefault(lookup, "LOYALTY_REDEEM_VALUE", defaultRedeemValue),
		},
		Notifications: NotificationConfig{
			TopicID:           stringWithDefault(lookup, "NOTIFICATION_TOPIC", ""),
			AdminEmail:        stringWithDefault(lookup, "ADMIN_EMAIL", ""),
			PickupLeadMinutes: intWithDefault(lookup, "PICKUP_LEAD_MINUTES", defaultPickupLeadMinutes),
		},
	}

	if err := resolveSecrets(ctx, &cfg, options.resolver); err != nil {
		return Config{}, err
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecrets(ctx context.Context, cfg *Config, resolver SecretResolver) error {
	targets := []*string{
		&cfg.Auth.AccessTokenSecret,
		&cfg.Auth.RefreshTokenSecret,
	}
	for _, target := range targets {
		value := strings.TrimSpace(*target)
		if !strings.HasPrefix(value, secretScheme) {
			continue
		}
		if resolver == nil {
			return errSecretResolverNotConfigured
		}
		resolved, err := resolver.ResolveSecret(ctx, value)
		if err != nil {
			return fmt.Errorf("config: resolve secret %s: %w", redactSecretRef(value), err)
		}
		*target = resolved
	}
	return nil
}

func validate(cfg Config) error {
	var invalid []string
	if strings.TrimSpace(cfg.Server.ListenAddr) == "" {
		invalid = append(invalid, "LISTEN_ADDR")
	}
	if strings.TrimSpace(cfg.Auth.AccessTokenSecret) == "" {
		invalid = append(invalid, "ACCESS_TOKEN_SECRET")
	}
	if strings.TrimSpace(cfg.Auth.RefreshTokenSecret) == "" {
		invalid = append(invalid, "REFRESH_TOKEN_SECRET")
	}
	if cfg.Auth.MaxRefreshTokens <= 0 {
		invalid = append(invalid, "MAX_REFRESH_TOKENS")
	}
	if cfg.Loyalty.EarnRate <= 0 {
		invalid = append(invalid, "LOYALTY_EARN_RATE")
	}
	if cfg.Loyalty.RedeemValue <= 0 {
		invalid = append(invalid, "LOYALTY_REDEEM_VALUE")
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return &ValidationError{fields: invalid}
}

func redactSecretRef(ref string) string {
	trimmed := strings.TrimPrefix(ref, secretScheme)
	if len(trimmed) <= 4 {
		return secretScheme + "****"
	}
	return secretScheme + trimmed[:4] + "****"
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
		if parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
