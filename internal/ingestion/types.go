// Package ingestion defines the request/response types used by the article
// ingestion service, which stores new articles and announces them on the
// document-ingest topic for the next index build.
package ingestion

// IngestRequest is the JSON body accepted by POST /api/v1/documents. ID is
// optional; when empty one is derived from the content hash so that
// resubmitting the same article is idempotent.
type IngestRequest struct {
	ID      string `json:"id,omitempty"`
	Subject string `json:"Subject"`
	Summary string `json:"Summary"`
	Content string `json:"Content"`
}

// IngestResponse is returned to the caller after an article is accepted.
type IngestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

const (
	StatusAccepted  = "ACCEPTED"
	StatusDuplicate = "DUPLICATE"
)
