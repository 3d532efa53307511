package schema

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Validator validates violations against the canonical schema.
type Validator struct {
	validate  *validator.Validate
	maxFuture time.Duration
}

// ValidatorConfig holds configuration for the validator.
type ValidatorConfig struct {
	MaxFuture time.Duration
}

// DefaultValidatorConfig returns the default validator configuration.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MaxFuture: 5 * time.Minute,
	}
}

// NewValidator creates a new Validator with default configuration.
func NewValidator() *Validator {
	return NewValidatorWithConfig(DefaultValidatorConfig())
}

// NewValidatorWithConfig creates a new Validator with the specified configuration.
func NewValidatorWithConfig(cfg ValidatorConfig) *Validator {
	return &Validator{
		validate:  validator.New(),
		maxFuture: cfg.MaxFuture,
	}
}

// ValidateViolation validates a violation against the canonical schema.
// Returns an error if validation fails.
func (v *Validator) ValidateViolation(violation *Violation) error {
	if err := v.validate.Struct(violation); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()

	if violation.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}

	if violation.CreatedAt.After(now.Add(v.maxFuture)) {
		return fmt.Errorf("created_at in future: %v (max future: %v)", violation.CreatedAt, v.maxFuture)
	}

	if violation.Status == ViolationResolved && violation.ResolvedAt == nil {
		return fmt.Errorf("resolved violation missing resolved_at")
	}

	return nil
}

// Struct exposes raw struct validation for other schema types.
func (v *Validator) Struct(s any) error {
	return v.validate.Struct(s)
}
