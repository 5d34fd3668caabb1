package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/entity-index-platform/internal/ingestion"
)

func TestValidateIngestRequest(t *testing.T) {
	tests := []struct {
		name   string
		req    ingestion.IngestRequest
		fields []string
	}{
		{"valid", ingestion.IngestRequest{Subject: "Hà Nội", Content: "Nguyễn Văn A đến Hà Nội."}, nil},
		{"content only", ingestion.IngestRequest{Content: "x"}, nil},
		{"blank content", ingestion.IngestRequest{Subject: "s", Content: "   "}, []string{"Content"}},
		{"long subject", ingestion.IngestRequest{Subject: strings.Repeat("a", maxSubjectLength+1), Content: "x"}, []string{"Subject"}},
		{"long id and summary", ingestion.IngestRequest{
			ID:      strings.Repeat("i", maxIDLength+1),
			Summary: strings.Repeat("s", maxSummaryLength+1),
			Content: "x",
		}, []string{"id", "Summary"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateIngestRequest(&tt.req)
			if tt.fields == nil {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Len(t, verr.Fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestValidationError_StableMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"b": "two", "a": "one"}}
	assert.Equal(t, "a:one; b:two", err.Error())
}
