package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/rzbeall84/ask-rita/pkg/db/pagination"
)

// LogPage is one page of the audit log, newest first.
type LogPage struct {
	Events   []*EventLog         `json:"events"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Ingest applies one normalized event to subscription and ledger state
	// and appends an audit row regardless of the transition's outcome.
	// Replaying a delivery with the same provider event ID is a no-op.
	Ingest(ctx context.Context, ev Event) error
	// ListLog pages through an organization's audit rows, newest first.
	ListLog(ctx context.Context, orgID snowflake.ID, p pagination.Pagination) (*LogPage, error)
}

var (
	ErrMalformedEvent   = errors.New("malformed_event")
	ErrUnknownEventType = errors.New("unknown_event_type")
)
