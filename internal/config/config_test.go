package config

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"key-1", []string{"key-1"}},
		{"key-1,key-2", []string{"key-1", "key-2"}},
		{" key-1 , key-2 ", []string{"key-1", "key-2"}},
		{"key-1,,key-2,", []string{"key-1", "key-2"}},
		{",,", nil},
	}
	for _, tt := range tests {
		if got := parseList(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseList(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestParseWebhooks(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "ops=https://hooks.example.com/a", map[string]string{"ops": "https://hooks.example.com/a"}},
		{
			"multiple",
			"ops=https://hooks.example.com/a,oncall=https://hooks.example.com/b",
			map[string]string{"ops": "https://hooks.example.com/a", "oncall": "https://hooks.example.com/b"},
		},
		{"url with query", "ops=https://hooks.example.com/a?token=x=y", map[string]string{"ops": "https://hooks.example.com/a?token=x=y"}},
		{"malformed skipped", "ops=https://hooks.example.com/a,bogus,=nourl,noname=", map[string]string{"ops": "https://hooks.example.com/a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseWebhooks(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseWebhooks(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	t.Setenv("TEST_INT_VALUE", "42")
	if got := getEnvAsIntOrDefault("TEST_INT_VALUE", 7); got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	t.Setenv("TEST_INT_VALUE", "not-a-number")
	if got := getEnvAsIntOrDefault("TEST_INT_VALUE", 7); got != 7 {
		t.Errorf("expected default for bad value, got %d", got)
	}

	if got := getEnvAsIntOrDefault("TEST_INT_UNSET", 7); got != 7 {
		t.Errorf("expected default for unset var, got %d", got)
	}
}

func TestLoadOrGenerateJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := filepath.Join(t.TempDir(), ".jwt_secret")

	first := loadOrGenerateJWTSecret(path)
	if first == "" {
		t.Fatal("expected a generated secret")
	}
	// 32 random bytes, hex encoded.
	if len(first) != 64 {
		t.Errorf("secret length = %d, want 64", len(first))
	}

	// The secret persists across restarts.
	second := loadOrGenerateJWTSecret(path)
	if second != first {
		t.Error("expected the persisted secret to be reused")
	}
}

func TestLoadOrGenerateJWTSecretEnvOverride(t *testing.T) {
	t.Setenv("JWT_SECRET", "env-secret")
	path := filepath.Join(t.TempDir(), ".jwt_secret")

	if got := loadOrGenerateJWTSecret(path); got != "env-secret" {
		t.Errorf("expected env override, got %q", got)
	}
}
