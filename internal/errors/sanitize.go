// Package errors provides error sanitization for outward-facing surfaces.
package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Pattern to match file paths
	filePathPattern = regexp.MustCompile(`(/[a-zA-Z0-9_\-./]+)|([A-Z]:\\[a-zA-Z0-9_\-\\ ./]+)`)

	// Pattern to match IP addresses
	ipPattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)

	// Pattern to match connection and credential details
	internalErrorPattern = regexp.MustCompile(`(?i)(sql:|clickhouse|redis:|connection string|password=|secret=|token=|api[_-]?key=)`)
)

// ProductionMode determines whether errors are sanitized before leaving
// the process. In development the original errors pass through.
var ProductionMode = false

// SetProductionMode sets the production mode flag. Should be called
// during application initialization.
func SetProductionMode(production bool) {
	ProductionMode = production
}

// SanitizeError removes sensitive information from error messages.
func SanitizeError(err error) error {
	if err == nil {
		return nil
	}
	if !ProductionMode {
		return err
	}
	return errors.New(SanitizeString(err.Error()))
}

// SanitizeString removes sensitive information from a string.
func SanitizeString(s string) string {
	if !ProductionMode {
		return s
	}

	// Keep only the filename from absolute paths
	s = filePathPattern.ReplaceAllStringFunc(s, func(match string) string {
		return filepath.Base(match)
	})

	// Mask IP addresses, keep the first two octets for context
	s = ipPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := strings.Split(match, ".")
		if len(parts) == 4 {
			return fmt.Sprintf("%s.%s.x.x", parts[0], parts[1])
		}
		return "x.x.x.x"
	})

	if internalErrorPattern.MatchString(s) {
		s = "storage operation failed"
	}

	if strings.Contains(s, "goroutine") || strings.Count(s, "\n") > 3 {
		s = "internal server error - operation failed"
	}

	return s
}

// SafeErrorMessage returns a user-safe error message. Known user-facing
// errors pass through; everything else is sanitized.
func SafeErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()

	userFacingErrors := []string{
		"not found",
		"invalid",
		"unauthorized",
		"forbidden",
		"transition",
		"unknown channel",
		"required",
	}

	lowerMsg := strings.ToLower(msg)
	for _, safe := range userFacingErrors {
		if strings.Contains(lowerMsg, safe) {
			return msg
		}
	}

	return SanitizeString(msg)
}
