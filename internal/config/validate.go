package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ValidationResult struct {
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	// Field is the dotted path of the first failure, when known.
	Field string `json:"field,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

// ValidateWithResult compiles cfg and reports the outcome. Compilation stops
// at the first failure, so Errors holds at most one entry.
func ValidateWithResult(cfg *Config) ValidationResult {
	compiled, err := Compile(cfg)
	if err != nil {
		return ErrorResult(err)
	}
	return ValidationResult{OK: true, Warnings: compiled.Warnings}
}

// ErrorResult wraps a load/parse/compile failure as a ValidationResult.
func ErrorResult(err error) ValidationResult {
	res := ValidationResult{OK: false, Errors: []string{err.Error()}}
	var cerr *Error
	if errors.As(err, &cerr) {
		res.Field = cerr.Field
		res.Kind = cerr.Kind.String()
	}
	return res
}

func FormatValidationJSON(res ValidationResult) (string, error) {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func FormatValidationText(res ValidationResult) string {
	if res.OK {
		if len(res.Warnings) == 0 {
			return "document ok"
		}
		return fmt.Sprintf("document ok (warnings: %d)", len(res.Warnings))
	}
	if len(res.Errors) == 0 {
		return "document invalid"
	}
	return fmt.Sprintf("document invalid: %s", res.Errors[0])
}
