package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "planner.pack_ratio")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"json", "text"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePlanner()...)
	errors = append(errors, c.validateScripts()...)
	errors = append(errors, c.validateHosts()...)
	errors = append(errors, c.validateMailbox()...)
	errors = append(errors, c.validatePurchase()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateSim()...)

	return errors
}

func (c *Config) validatePlanner() []ValidationError {
	var errors []ValidationError

	if c.Planner.HomeHost == "" {
		errors = append(errors, ValidationError{
			Field:   "planner.home_host",
			Value:   c.Planner.HomeHost,
			Message: "must not be empty",
		})
	}
	if c.Planner.HomeReserveGB < 0 {
		errors = append(errors, ValidationError{
			Field:   "planner.home_reserve_gb",
			Value:   c.Planner.HomeReserveGB,
			Message: "must be non-negative",
		})
	}
	if c.Planner.MaxAwaits < 1 {
		errors = append(errors, ValidationError{
			Field:   "planner.max_awaits",
			Value:   c.Planner.MaxAwaits,
			Message: "must be at least 1",
		})
	}
	if c.Planner.YieldInterval <= 0 {
		errors = append(errors, ValidationError{
			Field:   "planner.yield_interval",
			Value:   c.Planner.YieldInterval,
			Message: "must be positive",
		})
	}
	if c.Planner.PackRatio <= 0 || c.Planner.PackRatio > 1 {
		errors = append(errors, ValidationError{
			Field:   "planner.pack_ratio",
			Value:   c.Planner.PackRatio,
			Message: "must be in (0, 1]",
		})
	}
	if c.Planner.MaxHackCandidates < 1 {
		errors = append(errors, ValidationError{
			Field:   "planner.max_hack_candidates",
			Value:   c.Planner.MaxHackCandidates,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateScripts() []ValidationError {
	var errors []ValidationError

	named := map[string]string{
		"scripts.hack":   c.Scripts.Hack,
		"scripts.grow":   c.Scripts.Grow,
		"scripts.weaken": c.Scripts.Weaken,
		"scripts.share":  c.Scripts.Share,
	}
	fields := make([]string, 0, len(named))
	for field := range named {
		fields = append(fields, field)
	}
	slices.Sort(fields)

	seen := make(map[string]string)
	for _, field := range fields {
		name := named[field]
		if strings.TrimSpace(name) == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   name,
				Message: "must not be empty",
			})
			continue
		}
		if other, dup := seen[name]; dup {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   name,
				Message: fmt.Sprintf("duplicates %s", other),
			})
		}
		seen[name] = field
	}

	return errors
}

func (c *Config) validateHosts() []ValidationError {
	var errors []ValidationError

	for i, pattern := range c.Hosts.Exclude {
		if _, err := glob.Compile(pattern); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("hosts.exclude[%d]", i),
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}
	}

	return errors
}

func (c *Config) validateMailbox() []ValidationError {
	// Three values make up one signal frame.
	const minCapacity = 3

	if c.Mailbox.Capacity != -1 && c.Mailbox.Capacity < minCapacity {
		return []ValidationError{{
			Field:   "mailbox.capacity",
			Value:   c.Mailbox.Capacity,
			Message: fmt.Sprintf("must be -1 (unbounded) or at least %d", minCapacity),
		}}
	}
	return nil
}

func (c *Config) validatePurchase() []ValidationError {
	gb := c.Purchase.MinRAMGB
	if gb < 1 || gb != float64(int64(gb)) || int64(gb)&(int64(gb)-1) != 0 {
		return []ValidationError{{
			Field:   "purchase.min_ram_gb",
			Value:   gb,
			Message: "must be a power of two",
		}}
	}
	return nil
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.Format != "" && !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateSim() []ValidationError {
	if c.Sim.TimeScale <= 0 {
		return []ValidationError{{
			Field:   "sim.time_scale",
			Value:   c.Sim.TimeScale,
			Message: "must be positive",
		}}
	}
	return nil
}
