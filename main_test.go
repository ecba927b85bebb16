package main

import (
	"errors"
	"fmt"
	"testing"

	"heureka-stats/config"
	"heureka-stats/locale"
	"heureka-stats/scraper/heureka"
	"heureka-stats/services"
	"heureka-stats/storage"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid config", fmt.Errorf("%w: missing required parameters: email", config.ErrInvalidConfig), exitUserError},
		{"unsupported country", locale.ErrUnsupportedLocale, exitUserError},
		{"login exhausted", fmt.Errorf("%w: timeout", heureka.ErrLoginExhausted), exitUserError},
		{"window too old", fmt.Errorf("%w: ends 2020-01-01", services.ErrWindowOutOfRange), exitUserError},
		{"writer failure", fmt.Errorf("write 2024-05-01: %w", storage.ErrDuplicateRecord), exitInternalError},
		{"anything else", errors.New("boom"), exitInternalError},
	}

	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--country", "sk", "--from", "yesterday", "--headless=false"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg := config.Defaults()
	cfg.Country = "cz"
	cfg.DateTo = "today"
	applyFlags(cmd, &cfg)

	if cfg.Country != "sk" {
		t.Errorf("Country: got %q, want sk", cfg.Country)
	}
	if cfg.DateFrom != "yesterday" {
		t.Errorf("DateFrom: got %q, want yesterday", cfg.DateFrom)
	}
	if cfg.DateTo != "today" {
		t.Errorf("DateTo should keep its configured value, got %q", cfg.DateTo)
	}
	if cfg.Headless {
		t.Error("Headless should be false")
	}
}

func TestMissingParametersIsUserError(t *testing.T) {
	t.Setenv("HEUREKA_EMAIL", "")
	t.Setenv("HEUREKA_PASSWORD", "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--country", "cz"})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := exitCode(err); got != exitUserError {
		t.Errorf("exit code: got %d, want %d (%v)", got, exitUserError, err)
	}
}
