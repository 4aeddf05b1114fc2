package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "bot.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file failed: %v", err)
	}

	return path
}

func TestParseConfigFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		body             string
		wantErrSubstring string
		wantLevel        slog.Level
		wantSelfID       string
	}{
		{
			name: "full config",
			body: `{
				"log_level": "debug",
				"token": "secret",
				"self_id": "42",
				"api_base_url": "https://example.test/api",
				"gateway_url": "wss://example.test/gateway"
			}`,
			wantLevel:  slog.LevelDebug,
			wantSelfID: "42",
		},
		{
			name:       "level defaults to info",
			body:       `{"token":"secret","self_id":"42","gateway_url":"wss://example.test"}`,
			wantLevel:  slog.LevelInfo,
			wantSelfID: "42",
		},
		{
			name:             "invalid level fails",
			body:             `{"log_level":"verbose","token":"secret","self_id":"42"}`,
			wantErrSubstring: "parse log_level",
		},
		{
			name:             "invalid self id fails",
			body:             `{"token":"secret","self_id":"bot"}`,
			wantErrSubstring: "parse self_id",
		},
		{
			name:             "malformed json fails",
			body:             `{"token":`,
			wantErrSubstring: "parse config file",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			path := writeConfigFile(t, testCase.body)
			cfg, err := parseConfigFile(path)
			if testCase.wantErrSubstring != "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), testCase.wantErrSubstring) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstring)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.logLevel != testCase.wantLevel {
				t.Fatalf("log level = %v, want %v", cfg.logLevel, testCase.wantLevel)
			}
			if cfg.selfID.String() != testCase.wantSelfID {
				t.Fatalf("self id = %s, want %s", cfg.selfID, testCase.wantSelfID)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	valid := appConfig{token: "secret", selfID: 42, gatewayURL: "wss://example.test"}
	if err := validateConfig(valid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name             string
		mutate           func(appConfig) appConfig
		wantErrSubstring string
	}{
		{
			name:             "missing token",
			mutate:           func(cfg appConfig) appConfig { cfg.token = ""; return cfg },
			wantErrSubstring: "token is required",
		},
		{
			name:             "missing self id",
			mutate:           func(cfg appConfig) appConfig { cfg.selfID = 0; return cfg },
			wantErrSubstring: "self_id is required",
		},
		{
			name:             "missing gateway url",
			mutate:           func(cfg appConfig) appConfig { cfg.gatewayURL = ""; return cfg },
			wantErrSubstring: "gateway_url is required",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			err := validateConfig(testCase.mutate(valid))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), testCase.wantErrSubstring) {
				t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstring)
			}
		})
	}
}
