// Package validator checks ingestion requests and returns per-field error
// details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/ingestion"
)

const (
	maxIDLength      = 255
	maxSubjectLength = 1024
	maxSummaryLength = 8192
	maxContentLength = 1048576
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest enforces the length limits on every article field.
// Content is required; Subject and Summary may be empty.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	if len(req.ID) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}
	if len(strings.TrimSpace(req.Subject)) > maxSubjectLength {
		errs["Subject"] = fmt.Sprintf("subject must be at most %d characters", maxSubjectLength)
	}
	if len(strings.TrimSpace(req.Summary)) > maxSummaryLength {
		errs["Summary"] = fmt.Sprintf("summary must be at most %d characters", maxSummaryLength)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		errs["Content"] = "content is required"
	} else if len(content) > maxContentLength {
		errs["Content"] = fmt.Sprintf("content must be at most %d characters", maxContentLength)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
