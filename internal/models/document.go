package models

// SourceDocument is the ingestion input: a flat sequence of pages extracted
// from a rulebook. Pages without a text field are skipped during ingestion.
type SourceDocument struct {
	Pages []Page `json:"pages"`
}

// Page is a single page of a source document. Text is a pointer so that a
// missing field can be told apart from an empty string.
type Page struct {
	Text *string `json:"text,omitempty"`
}
