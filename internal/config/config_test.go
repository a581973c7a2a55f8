package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with defaults: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q", cfg.GinMode)
	}
	if cfg.DBPath != "solar.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Errorf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.Upstream.Timeout != 15*time.Second {
		t.Errorf("Upstream.Timeout = %v", cfg.Upstream.Timeout)
	}
	if !strings.Contains(cfg.Upstream.BaseURL, "sunrise-sunset") {
		t.Errorf("Upstream.BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Fetch.BatchSize != 10 {
		t.Errorf("Fetch.BatchSize = %d", cfg.Fetch.BatchSize)
	}
	if cfg.Fetch.CallDelay != 50*time.Millisecond || cfg.Fetch.BatchDelay != 200*time.Millisecond {
		t.Errorf("Fetch delays = %v / %v", cfg.Fetch.CallDelay, cfg.Fetch.BatchDelay)
	}
	if cfg.OTEL.Enabled {
		t.Error("OTEL should be disabled by default")
	}
}

func TestLoad_EnvOverridesAndNormalization(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "bogus")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("FETCH_BATCH_SIZE", "25")
	t.Setenv("FETCH_CALL_DELAY", "10ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q; want warn", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q; want release fallback", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api/v2" {
		t.Errorf("APIBasePath = %q; want /api/v2", cfg.APIBasePath)
	}
	if cfg.Fetch.BatchSize != 25 || cfg.Fetch.CallDelay != 10*time.Millisecond {
		t.Errorf("fetch overrides not applied: %+v", cfg.Fetch)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		key, val string
	}{
		{"LOG_LEVEL", "verbose"},
		{"READ_TIMEOUT", "-1s"},
		{"SUN_API_TIMEOUT", "-1s"},
		{"FETCH_BATCH_SIZE", "0"},
		{"FETCH_CALL_DELAY", "-5ms"},
		{"RATE_RPS", "-1"},
		{"RATE_BURST", "0"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", tc.key, tc.val)
			}
		})
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	t.Setenv("FETCH_BATCH_SIZE", "0")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustLoad()
}

func TestSplitCSV(t *testing.T) {
	got := splitCSV(" a, ,b ,c")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("splitCSV = %v", got)
	}
	if splitCSV("") != nil {
		t.Fatal("empty input should yield nil")
	}
}
