package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mediasort/internal/index"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrIO            = errors.New("io error")
	ErrPlacement     = errors.New("placement error")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes pipeline stage context while
// tagging it with the provided marker for later outcome classification. The
// marker should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// RecordStatus maps a failed stage's error to the outcome the pipeline
// records for the file. Cancellation is not an outcome: a file interrupted
// by shutdown is left unrecorded so the next run picks it up fresh.
func RecordStatus(err error) (index.Status, bool) {
	if err == nil || errors.Is(err, context.Canceled) {
		return "", false
	}
	return index.StatusError, true
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
