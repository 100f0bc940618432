package core

import (
	"time"
)

// DefaultExtendedTables names the tables whose presence marks a feed as
// carrying extended data.
var DefaultExtendedTables = []string{"levels", "pathways", "translations", "attributions"}

// TableLoadResult summarizes the load of one table.
type TableLoadResult struct {
	RowCount      int    `json:"row_count"`
	ErrorRowCount int    `json:"error_row_count"`
	ErrorCount    int    `json:"error_count"`
	FileSize      int64  `json:"file_size,omitempty"`
	Missing       bool   `json:"missing,omitempty"`
	FatalError    string `json:"fatal_error,omitempty"`
	FatalCode     string `json:"fatal_code,omitempty"`
	Duration      string `json:"duration"`
}

// Failed reports whether the table load aborted.
func (r TableLoadResult) Failed() bool {
	return r.FatalError != ""
}

// FeedLoadResult summarizes the load of a whole feed.
type FeedLoadResult struct {
	ID               string                     `json:"id"`
	SchemaName       string                     `json:"schema_name"`
	Tables           map[string]TableLoadResult `json:"tables"`
	ErrorCount       int                        `json:"error_count"`
	ErrorCountByType map[ErrorType]int          `json:"error_count_by_type"`
	StartedAt        time.Time                  `json:"started_at"`
	Duration         string                     `json:"duration"`
	FatalException   string                     `json:"fatal_exception,omitempty"`

	extendedTables []string
}

// NewFeedLoadResult creates an empty result. A nil extended list uses
// DefaultExtendedTables.
func NewFeedLoadResult(id, schema string, extended []string) *FeedLoadResult {
	if extended == nil {
		extended = DefaultExtendedTables
	}
	return &FeedLoadResult{
		ID:               id,
		SchemaName:       schema,
		Tables:           make(map[string]TableLoadResult),
		ErrorCountByType: make(map[ErrorType]int),
		StartedAt:        time.Now(),
		extendedTables:   extended,
	}
}

// HasExtendedData reports whether any extended table loaded at least one row.
func (r *FeedLoadResult) HasExtendedData() bool {
	for _, name := range r.extendedTables {
		if t, ok := r.Tables[name]; ok && t.RowCount > 0 {
			return true
		}
	}
	return false
}

// RowCount returns the total number of rows loaded across all tables.
func (r *FeedLoadResult) RowCount() int {
	n := 0
	for _, t := range r.Tables {
		n += t.RowCount
	}
	return n
}
