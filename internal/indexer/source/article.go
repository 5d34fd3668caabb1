package source

import (
	"bytes"
	"encoding/json"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ArticleEventType tags Article events on the document-ingest topic.
const ArticleEventType = "article"

// Article is the structured form of a news article as stored on disk, in
// PostgreSQL and on the document-ingest topic.
type Article struct {
	ID      string `json:"id,omitempty"`
	Subject string `json:"Subject"`
	Summary string `json:"Summary"`
	Content string `json:"Content"`
}

// Text flattens the article to "Subject . Summary . Content".
func (a Article) Text() string {
	return a.Subject + " . " + a.Summary + " . " + a.Content
}

// ParseArticle turns raw file content into indexable text. JSON objects are
// read as an Article; anything else is used as-is. A leading UTF-8 byte order
// mark is dropped in both cases.
func ParseArticle(raw []byte) string {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var a Article
		if err := json.Unmarshal(trimmed, &a); err == nil {
			return a.Text()
		}
	}
	return strings.TrimSpace(string(raw))
}
