// Package pregen selects text items that still lack audio and drives the
// batch that synthesizes and stores it.
package pregen

import (
	"context"
	"fmt"

	"github.com/ttsblind/pregen/internal/db"
)

// WorkItem is one (text item, provider, voice) combination lacking audio.
type WorkItem struct {
	TextItemID   string
	Language     string
	Text         string
	VoiceID      string
	Voice        string
	ProviderID   string
	ProviderKind string
}

// SelectionError means the pending work list could not be read. It aborts
// the run.
type SelectionError struct {
	Err error
}

func (e *SelectionError) Error() string { return fmt.Sprintf("select pending work: %v", e.Err) }

func (e *SelectionError) Unwrap() error { return e.Err }

// PendingWorkStore lists pending work.
type PendingWorkStore interface {
	ListPendingWork(ctx context.Context, arg db.ListPendingWorkParams) ([]db.ListPendingWorkRow, error)
}

// Selector reads pending work oldest first.
type Selector struct {
	store PendingWorkStore
}

func NewSelector(store PendingWorkStore) *Selector {
	return &Selector{store: store}
}

// SelectPending returns up to maxItems work items, optionally restricted to
// one language, ordered by text item creation time, text item ID, voice
// creation time and voice ID. A non-positive maxItems returns nothing
// without touching the store.
func (s *Selector) SelectPending(ctx context.Context, maxItems int, language string) ([]WorkItem, error) {
	if maxItems <= 0 {
		return nil, nil
	}
	rows, err := s.store.ListPendingWork(ctx, db.ListPendingWorkParams{
		Language: language,
		MaxItems: int64(maxItems),
	})
	if err != nil {
		return nil, &SelectionError{Err: err}
	}
	items := make([]WorkItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, WorkItem{
			TextItemID:   r.TextItemID,
			Language:     r.Language,
			Text:         r.Text,
			VoiceID:      r.VoiceID,
			Voice:        r.Voice,
			ProviderID:   r.ProviderID,
			ProviderKind: r.ProviderKind,
		})
	}
	return items, nil
}
