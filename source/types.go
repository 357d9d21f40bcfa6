// Package source provides adapters for the remote survey data sources:
// spreadsheet tabs exported as CSV, interview transcripts exported as
// plaintext, and local XLSX fixtures. All adapters distinguish an
// unavailable source from a source that simply has no rows.
package source

import (
	"context"

	"github.com/churryboy/sheet-llm-chatbot/record"
)

// Kind discriminates queryable source types.
type Kind string

const (
	KindSurvey    Kind = "survey"
	KindInterview Kind = "interview"
)

// Descriptor identifies a queryable data source. Custom descriptors are
// created through explicit registration and persisted by the registry
// package; they are mutated on rename and never auto-deleted.
type Descriptor struct {
	// Kind is survey (spreadsheet tab) or interview (document).
	Kind Kind `json:"kind"`

	// SpreadsheetID is the spreadsheet holding the tab (survey kind).
	SpreadsheetID string `json:"spreadsheet_id,omitempty"`

	// GID is the tab identifier within the spreadsheet (survey kind).
	GID string `json:"gid,omitempty"`

	// DocumentID is the document identifier (interview kind).
	DocumentID string `json:"document_id,omitempty"`

	// DisplayName is the user-facing title.
	DisplayName string `json:"display_name"`

	// IsDefault marks built-in sources as opposed to user-registered ones.
	IsDefault bool `json:"is_default,omitempty"`
}

// TableFetcher fetches a rectangular dataset from a tabular source.
type TableFetcher interface {
	// FetchTable returns the rows of one sheet tab, with the first
	// source row as field names and each Record stamped with the
	// sheet's display name. A fetch failure returns an *Unavailable
	// error; a reachable sheet with zero data rows returns an empty
	// Dataset and nil error.
	FetchTable(ctx context.Context, desc Descriptor) (*record.Dataset, error)
}

// DocumentFetcher fetches a long-form text blob from a document source.
type DocumentFetcher interface {
	// FetchDocument returns the document's plaintext, or an
	// *Unavailable error when neither tier of access succeeds.
	FetchDocument(ctx context.Context, documentID string) (string, error)
}
