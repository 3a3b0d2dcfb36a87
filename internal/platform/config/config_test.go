package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"ACCESS_TOKEN_SECRET":  "access-secret",
		"REFRESH_TOKEN_SECRET": "refresh-secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvMap(baseEnv()))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Auth.AccessTokenTTL != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 15m", cfg.Auth.AccessTokenTTL)
	}
	if cfg.Auth.MaxRefreshTokens != 5 {
		t.Errorf("MaxRefreshTokens = %d, want 5", cfg.Auth.MaxRefreshTokens)
	}
	if cfg.Loyalty.EarnRate != 100 {
		t.Errorf("EarnRate = %d, want 100", cfg.Loyalty.EarnRate)
	}
	if cfg.Loyalty.RedeemValue != 1 {
		t.Errorf("RedeemValue = %d, want 1", cfg.Loyalty.RedeemValue)
	}
}

func TestLoadMissingSecretsFailsValidation(t *testing.T) {
	_, err := Load(context.Background(), WithoutSystemEnv())
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Load error = %v, want ValidationError", err)
	}
	fields := validationErr.Fields()
	if len(fields) != 2 {
		t.Fatalf("invalid fields = %v, want both token secrets", fields)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["ACCESS_TOKEN_SECRET"] = "secret://projects/demo/secrets/access"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://projects/demo/secrets/access" {
			return "", errors.New("unexpected ref")
		}
		return "resolved-access", nil
	})

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvMap(env), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Auth.AccessTokenSecret != "resolved-access" {
		t.Errorf("AccessTokenSecret = %q, want resolved value", cfg.Auth.AccessTokenSecret)
	}
}

func TestLoadSecretReferenceWithoutResolver(t *testing.T) {
	env := baseEnv()
	env["REFRESH_TOKEN_SECRET"] = "secret://projects/demo/secrets/refresh"

	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvMap(env))
	if !errors.Is(err, errSecretResolverNotConfigured) {
		t.Fatalf("Load error = %v, want resolver-not-configured", err)
	}
}

func TestLoadRejectsNonPositiveLoyaltyRates(t *testing.T) {
	env := baseEnv()
	env["LOYALTY_EARN_RATE"] = "0"

	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvMap(env))
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("Load error = %v, want ValidationError", err)
	}
}
