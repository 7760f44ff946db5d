package config

import (
	"os"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsBoolOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal bool
		expected   bool
	}{
		{"parses true", "TEST_BOOL_1", "true", false, true},
		{"parses 1", "TEST_BOOL_2", "1", false, true},
		{"uses default for empty", "TEST_BOOL_3", "", true, true},
		{"uses default for garbage", "TEST_BOOL_4", "maybe", false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				t.Setenv(tc.key, tc.envValue)
			}

			if got := getEnvAsBoolOrDefault(tc.key, tc.defaultVal); got != tc.expected {
				t.Errorf("Expected %v, got %v", tc.expected, got)
			}
		})
	}
}

func TestIsTestEnvironment(t *testing.T) {
	for _, key := range []string{"APP_TEST_MODE", "PLAYWRIGHT_TEST_BASE_URL", "PLAYWRIGHT", "CI_PLAYWRIGHT"} {
		t.Setenv(key, "")
	}
	if isTestEnvironment() {
		t.Fatalf("expected hosted mode when no test flag is set")
	}

	t.Setenv("PLAYWRIGHT", "True")
	if !isTestEnvironment() {
		t.Fatalf("expected test mode when PLAYWRIGHT is set")
	}
}

func TestLoad_TestModeSkipsHostedKeys(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/memodesk")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("APP_TEST_MODE", "true")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PORT", "9090")

	cfg := Load()
	if !cfg.TestEnvironment {
		t.Fatalf("expected TestEnvironment to be true")
	}
	if cfg.PublicBaseURL != "http://localhost:9090" {
		t.Errorf("unexpected public base URL %q", cfg.PublicBaseURL)
	}
	if cfg.UploadMaxBytes != 5*1024*1024 {
		t.Errorf("unexpected upload limit %d", cfg.UploadMaxBytes)
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	t.Setenv("TEST_REQUIRED", "value123")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}
