package pregen

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsblind/pregen/internal/audiostore"
	"github.com/ttsblind/pregen/internal/credential"
	"github.com/ttsblind/pregen/internal/db/dbtest"
	"github.com/ttsblind/pregen/internal/synth"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&synth.Error{Kind: synth.AuthError}, "auth_error"},
		{fmt.Errorf("wrapped: %w", &synth.Error{Kind: synth.RateLimited}), "rate_limited"},
		{&credential.UnavailableError{ProviderID: "p", Err: credential.ErrNoActiveCredential}, "credential_unavailable"},
		{&audiostore.PersistenceError{Op: "insert", Err: errors.New("x")}, "persistence_error"},
		{&SelectionError{Err: errors.New("x")}, "selection_error"},
		{errors.New("mystery"), "internal_error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err))
	}
}

func TestRedact(t *testing.T) {
	msg := redact("key sk-123 rejected, also sk-456", credential.Secret("sk-123"), credential.Secret(""), credential.Secret("sk-456"))
	assert.Equal(t, "key [redacted] rejected, also [redacted]", msg)
}

func TestSelectPending(t *testing.T) {
	s := dbtest.New(t)
	dbtest.Provider(t, s, "openai", "openai")
	dbtest.Voice(t, s, "v1", "openai", "alloy", "en", 1)
	dbtest.TextItem(t, s, "b", "en", "second", "", 2)
	dbtest.TextItem(t, s, "a", "en", "first", "", 2)
	dbtest.TextItem(t, s, "c", "en", "zeroth", "", 1)

	items, err := NewSelector(s).SelectPending(context.Background(), 10, "en")
	require.NoError(t, err)
	var ids []string
	for _, it := range items {
		ids = append(ids, it.TextItemID)
		assert.Equal(t, "openai", it.ProviderID)
		assert.Equal(t, "alloy", it.Voice)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	items, err = NewSelector(s).SelectPending(context.Background(), 10, "fr")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestCollectorIsOrderIndependent(t *testing.T) {
	start := time.Unix(1000, 0)
	build := func(order []int) *Summary {
		c := newCollector(start, 4)
		for _, i := range order {
			switch i {
			case 0:
				c.succeeded(i, false)
			case 1:
				c.succeeded(i, true)
			case 2:
				c.failed(i, Failure{ItemID: "x", Kind: "rate_limited"})
			case 3:
				c.failed(i, Failure{ItemID: "a", Kind: "auth_error"})
			}
		}
		return c.finish(start.Add(1500 * time.Millisecond))
	}
	a := build([]int{0, 1, 2, 3})
	b := build([]int{3, 2, 1, 0})
	assert.Equal(t, a, b)
	assert.Equal(t, 2, a.Succeeded)
	assert.Equal(t, 1, a.Duplicates)
	assert.Equal(t, 2, a.Failed)
	assert.EqualValues(t, 1500, a.DurationMS)
	assert.Equal(t, "a", a.Failures[0].ItemID)
}

func TestCollectorAbandonDropsLateOutcomes(t *testing.T) {
	start := time.Unix(1000, 0)
	c := newCollector(start, 3)
	c.dispatched(0, WorkItem{TextItemID: "done"})
	c.dispatched(1, WorkItem{TextItemID: "slow", ProviderID: "A", Voice: "alloy"})
	c.dispatched(2, WorkItem{TextItemID: "slower", ProviderID: "A", Voice: "alloy"})
	c.succeeded(0, false)

	n := c.abandon(func(item WorkItem) Failure {
		return Failure{ItemID: item.TextItemID, Provider: item.ProviderID, Kind: "transient_network_error"}
	})
	assert.Equal(t, 2, n)

	// Outcomes arriving after the collector closed are not counted twice.
	c.succeeded(1, false)
	c.failed(2, Failure{ItemID: "slower", Kind: "auth_error"})

	s := c.finish(start.Add(time.Second))
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.True(t, s.Partial)
	assert.Equal(t, map[string]int{"transient_network_error": 2}, s.ByKind)
	assert.Equal(t, s.Attempted, s.Succeeded+s.Failed+s.Skipped)
	assert.Equal(t, "slow", s.Failures[0].ItemID)
}
