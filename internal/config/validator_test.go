package config

import (
	"strings"
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "test.field",
		Value:   123,
		Message: "must be greater than zero",
	}

	expected := "test.field: must be greater than zero (got: 123)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	if errs := Default().Validate(); len(errs) != 0 {
		t.Errorf("Default() should be valid, got: %v", ValidationErrors(errs))
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty home host", func(c *Config) { c.Planner.HomeHost = "" }, "planner.home_host"},
		{"negative reserve", func(c *Config) { c.Planner.HomeReserveGB = -1 }, "planner.home_reserve_gb"},
		{"zero awaits", func(c *Config) { c.Planner.MaxAwaits = 0 }, "planner.max_awaits"},
		{"zero yield", func(c *Config) { c.Planner.YieldInterval = 0 }, "planner.yield_interval"},
		{"pack ratio zero", func(c *Config) { c.Planner.PackRatio = 0 }, "planner.pack_ratio"},
		{"pack ratio above one", func(c *Config) { c.Planner.PackRatio = 1.5 }, "planner.pack_ratio"},
		{"no candidates", func(c *Config) { c.Planner.MaxHackCandidates = 0 }, "planner.max_hack_candidates"},
		{"empty hack script", func(c *Config) { c.Scripts.Hack = " " }, "scripts.hack"},
		{"duplicate scripts", func(c *Config) { c.Scripts.Weaken = "grow.js" }, "scripts.weaken"},
		{"bad glob", func(c *Config) { c.Hosts.Exclude = []string{"[abc"} }, "hosts.exclude[0]"},
		{"mailbox too small", func(c *Config) { c.Mailbox.Capacity = 2 }, "mailbox.capacity"},
		{"ram not power of two", func(c *Config) { c.Purchase.MinRAMGB = 3 }, "purchase.min_ram_gb"},
		{"ram fractional", func(c *Config) { c.Purchase.MinRAMGB = 0.5 }, "purchase.min_ram_gb"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative size", func(c *Config) { c.Logging.MaxSizeMB = -1 }, "logging.max_size_mb"},
		{"negative backups", func(c *Config) { c.Logging.MaxBackups = -1 }, "logging.max_backups"},
		{"zero time scale", func(c *Config) { c.Sim.TimeScale = 0 }, "sim.time_scale"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			errs := cfg.Validate()
			if len(errs) != 1 {
				t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), ValidationErrors(errs))
			}
			if errs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", errs[0].Field, tt.field)
			}
		})
	}
}

func TestConfig_Validate_UnboundedMailbox(t *testing.T) {
	cfg := Default()
	cfg.Mailbox.Capacity = -1
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("capacity -1 should be valid, got %v", ValidationErrors(errs))
	}
}
