package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/boardgamelab/rulesearch/internal/models"
)

// ErrMalformedDocument is returned when a source document lacks the required
// pages structure. It aborts that ingestion only.
var ErrMalformedDocument = errors.New("malformed document")

// ParseDocument decodes a source document from JSON. The document must carry
// a "pages" array; pages without a text field are kept and skipped later.
func ParseDocument(data []byte) (*models.SourceDocument, error) {
	// Pages is a pointer here so a missing key can be told apart from an
	// empty array.
	var raw struct {
		Pages *[]models.Page `json:"pages"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if raw.Pages == nil {
		return nil, fmt.Errorf("%w: missing \"pages\" array", ErrMalformedDocument)
	}
	return &models.SourceDocument{Pages: *raw.Pages}, nil
}

// LoadDocument reads and parses a source document from disk.
func LoadDocument(path string) (*models.SourceDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return ParseDocument(data)
}
