package pregen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttsblind/pregen/internal/audiostore"
	"github.com/ttsblind/pregen/internal/credential"
	"github.com/ttsblind/pregen/internal/db"
	"github.com/ttsblind/pregen/internal/db/dbtest"
	"github.com/ttsblind/pregen/internal/logging"
	"github.com/ttsblind/pregen/internal/synth"
)

func init() {
	logging.Disable()
}

// fakeSynth records calls and answers with fn.
type fakeSynth struct {
	mu      sync.Mutex
	calls   int
	secrets []string
	fn      func(call int, req synth.Request) (*synth.Audio, error)
}

func (f *fakeSynth) Synthesize(_ context.Context, req synth.Request) (*synth.Audio, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.secrets = append(f.secrets, req.Secret.Reveal())
	f.mu.Unlock()
	if f.fn == nil {
		return &synth.Audio{Data: []byte("audio:" + req.Text), ContentType: "audio/mpeg"}, nil
	}
	return f.fn(call, req)
}

func (f *fakeSynth) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	store  *db.Store
	cipher *credential.Cipher
	synths *synth.Registry
	fakes  map[string]*fakeSynth
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	c, err := credential.NewCipher(bytes.Repeat([]byte{1}, credential.KeySize))
	require.NoError(t, err)
	h := &harness{
		store:  dbtest.New(t),
		cipher: c,
		synths: synth.NewRegistry(nil),
		fakes:  map[string]*fakeSynth{},
	}
	h.synths.Register("fake", func(cfg synth.ProviderConfig) (synth.Synthesizer, error) {
		f, ok := h.fakes[cfg.ID]
		if !ok {
			return nil, fmt.Errorf("no fake for %s", cfg.ID)
		}
		return f, nil
	})
	return h
}

// provider adds a fake-kind provider with one voice in language.
func (h *harness) provider(t *testing.T, id, language string, credentials ...string) *fakeSynth {
	t.Helper()
	dbtest.Provider(t, h.store, id, "fake")
	dbtest.Voice(t, h.store, "voice-"+id, id, "voice-"+id, language, 1)
	for i, secret := range credentials {
		enc, err := h.cipher.Encrypt(secret)
		require.NoError(t, err)
		dbtest.Credential(t, h.store, fmt.Sprintf("cred-%s-%d", id, i), id, enc, int64(100+i))
	}
	f := &fakeSynth{}
	h.fakes[id] = f
	return f
}

func (h *harness) items(t *testing.T, language string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		dbtest.TextItem(t, h.store, fmt.Sprintf("%s-item-%d", language, i), language, fmt.Sprintf("text %d", i), "", int64(10+i))
	}
}

func (h *harness) orchestrator(opts Options) *Orchestrator {
	return NewOrchestrator(h.store, credential.NewResolver(h.store, h.cipher), h.synths, audiostore.New(h.store, nil), opts)
}

func fastOptions() Options {
	return Options{
		Concurrency: 4,
		Retry:       RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
		TimeBudget:  10 * time.Second,
		CallTimeout: 2 * time.Second,
	}
}

func TestRunExampleScenario(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-a")
	b := h.provider(t, "B", "de")
	h.items(t, "en", 3)
	h.items(t, "de", 2)

	s, err := h.orchestrator(fastOptions()).Run(context.Background(), 10, "")
	require.NoError(t, err)

	assert.Equal(t, 5, s.Attempted)
	assert.Equal(t, 3, s.Succeeded)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 0, s.Skipped)
	assert.False(t, s.Partial)
	assert.Equal(t, map[string]int{credential.KindUnavailable: 2}, s.ByKind)
	require.Len(t, s.Failures, 2)
	for _, f := range s.Failures {
		assert.Equal(t, "B", f.Provider)
		assert.Equal(t, credential.KindUnavailable, f.Kind)
		assert.Equal(t, "de", f.Language)
	}

	assert.Equal(t, 3, a.Calls())
	assert.Equal(t, 0, b.Calls(), "no synthesis call for a provider without credentials")
	for _, secret := range a.secrets {
		assert.Equal(t, "key-a", secret)
	}
	assert.LessOrEqual(t, s.Succeeded+s.Failed, s.Attempted)
}

type noStore struct{ t *testing.T }

func (n noStore) ListPendingWork(context.Context, db.ListPendingWorkParams) ([]db.ListPendingWorkRow, error) {
	n.t.Fatal("store must not be touched")
	return nil, nil
}

func (n noStore) ListActiveProviders(context.Context) ([]db.Provider, error) {
	n.t.Fatal("store must not be touched")
	return nil, nil
}

func TestRunZeroMax(t *testing.T) {
	o := NewOrchestrator(noStore{t}, nil, nil, nil, fastOptions())
	for _, max := range []int{0, -5} {
		s, err := o.Run(context.Background(), max, "")
		require.NoError(t, err)
		assert.Zero(t, s.Attempted)
		assert.Zero(t, s.Succeeded)
		assert.Zero(t, s.Failed)
		assert.Empty(t, s.Failures)
	}
}

type brokenStore struct{}

func (brokenStore) ListPendingWork(context.Context, db.ListPendingWorkParams) ([]db.ListPendingWorkRow, error) {
	return nil, errors.New("database is locked")
}

func (brokenStore) ListActiveProviders(context.Context) ([]db.Provider, error) { return nil, nil }

func TestRunSelectionErrorIsFatal(t *testing.T) {
	o := NewOrchestrator(brokenStore{}, nil, nil, nil, fastOptions())
	s, err := o.Run(context.Background(), 10, "")
	assert.Nil(t, s)
	var sel *SelectionError
	require.True(t, errors.As(err, &sel))
	assert.Equal(t, KindSelection, KindOf(err))
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-a")
	h.items(t, "en", 3)
	o := h.orchestrator(fastOptions())

	first, err := o.Run(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Succeeded)

	second, err := o.Run(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Zero(t, second.Attempted)
	assert.Equal(t, 3, a.Calls())

	n, err := h.store.CountAudioFiles(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestOverlappingRunsNeverDuplicate(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-a")
	a.fn = func(_ int, req synth.Request) (*synth.Audio, error) {
		time.Sleep(5 * time.Millisecond)
		return &synth.Audio{Data: []byte(req.Text), ContentType: "audio/mpeg"}, nil
	}
	h.items(t, "en", 4)
	o := h.orchestrator(fastOptions())

	var wg sync.WaitGroup
	summaries := make([]*Summary, 2)
	for i := range summaries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := o.Run(context.Background(), 10, "")
			assert.NoError(t, err)
			summaries[i] = s
		}(i)
	}
	wg.Wait()

	for _, s := range summaries {
		require.NotNil(t, s)
		assert.Zero(t, s.Failed)
		assert.Equal(t, s.Attempted, s.Succeeded)
	}
	n, err := h.store.CountAudioFiles(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestRunRetryBound(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-a")
	a.fn = func(int, synth.Request) (*synth.Audio, error) {
		return nil, &synth.Error{Kind: synth.RateLimited, Provider: "A", Status: 429, Err: errors.New("slow down")}
	}
	h.items(t, "en", 1)

	s, err := h.orchestrator(fastOptions()).Run(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 3, a.Calls(), "exactly MaxAttempts provider calls")
	assert.Equal(t, string(synth.RateLimited), s.Failures[0].Kind)
}

func TestRunPermanentErrorNotRetried(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-a")
	a.fn = func(int, synth.Request) (*synth.Audio, error) {
		return nil, &synth.Error{Kind: synth.PermanentRequestError, Provider: "A", Status: 400, Err: errors.New("bad voice")}
	}
	h.items(t, "en", 2)

	s, err := h.orchestrator(fastOptions()).Run(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 2, a.Calls())
	assert.Equal(t, 2, s.ByKind[string(synth.PermanentRequestError)])
}

func TestRunTransientThenSuccess(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-a")
	a.fn = func(call int, req synth.Request) (*synth.Audio, error) {
		if call < 3 {
			return nil, &synth.Error{Kind: synth.TransientNetworkError, Provider: "A", Err: errors.New("reset")}
		}
		return &synth.Audio{Data: []byte("ok"), ContentType: "audio/mpeg"}, nil
	}
	h.items(t, "en", 1)

	s, err := h.orchestrator(fastOptions()).Run(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 3, a.Calls())
}

func TestRunAuthErrorReresolvesRotatedCredential(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "old-key")
	a.fn = func(_ int, req synth.Request) (*synth.Audio, error) {
		if req.Secret.Reveal() != "new-key" {
			return nil, &synth.Error{Kind: synth.AuthError, Provider: "A", Status: 401, Err: errors.New("invalid key " + req.Secret.Reveal())}
		}
		return &synth.Audio{Data: []byte("ok"), ContentType: "audio/mpeg"}, nil
	}
	h.items(t, "en", 1)

	// Rotate the credential after the first rejection.
	rotated := false
	base := a.fn
	a.fn = func(call int, req synth.Request) (*synth.Audio, error) {
		out, err := base(call, req)
		if err != nil && !rotated {
			rotated = true
			enc, encErr := h.cipher.Encrypt("new-key")
			require.NoError(t, encErr)
			dbtest.Credential(t, h.store, "cred-rotated", "A", enc, 500)
		}
		return out, err
	}

	s, err := h.orchestrator(fastOptions()).Run(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, []string{"old-key", "new-key"}, a.secrets)
}

func TestRunAuthErrorWithoutRotationFails(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "bad-key")
	a.fn = func(_ int, req synth.Request) (*synth.Audio, error) {
		return nil, &synth.Error{Kind: synth.AuthError, Provider: "A", Status: 401, Err: errors.New("invalid key " + req.Secret.Reveal())}
	}
	h.items(t, "en", 1)

	s, err := h.orchestrator(fastOptions()).Run(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, string(synth.AuthError), s.Failures[0].Kind)
	assert.Equal(t, 1, a.Calls(), "auth errors are not retried with the same credential")
	assert.NotContains(t, s.Failures[0].Message, "bad-key")
	assert.Contains(t, s.Failures[0].Message, "[redacted]")
}

func TestRunBreakerFailsFast(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-a")
	a.fn = func(int, synth.Request) (*synth.Audio, error) {
		return nil, &synth.Error{Kind: synth.TransientNetworkError, Provider: "A", Err: errors.New("503")}
	}
	h.items(t, "en", 4)

	opts := fastOptions()
	opts.Concurrency = 1
	opts.Retry.MaxAttempts = 1
	opts.BreakerThreshold = 2

	s, err := h.orchestrator(opts).Run(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Failed)
	assert.Equal(t, 2, a.Calls())
	open := 0
	for _, f := range s.Failures {
		if strings.Contains(f.Message, "circuit open") {
			open++
		}
	}
	assert.Equal(t, 2, open)
}

func TestRunStopsDispatchAtDeadline(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-a")
	a.fn = func(_ int, req synth.Request) (*synth.Audio, error) {
		time.Sleep(500 * time.Millisecond)
		return &synth.Audio{Data: []byte("ok"), ContentType: "audio/mpeg"}, nil
	}
	h.items(t, "en", 3)

	opts := fastOptions()
	opts.Concurrency = 1
	opts.TimeBudget = 2 * time.Second
	opts.DispatchMargin = 1700 * time.Millisecond

	s, err := h.orchestrator(opts).Run(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Attempted)
	assert.Equal(t, 1, s.Succeeded, "the in-flight item finishes past the dispatch deadline")
	assert.Equal(t, 2, s.Skipped)
	assert.True(t, s.Partial)
	assert.Equal(t, s.Attempted, s.Succeeded+s.Failed+s.Skipped)
}

func TestRunReturnsWithinBudgetWhileCallIsSlow(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	a := h.provider(t, "A", "en", "key-a")
	a.fn = func(_ int, req synth.Request) (*synth.Audio, error) {
		// Ignores cancellation, like a provider stuck on a slow response.
		select {
		case <-release:
		case <-time.After(1500 * time.Millisecond):
		}
		return &synth.Audio{Data: []byte("late"), ContentType: "audio/mpeg"}, nil
	}
	h.items(t, "en", 1)

	opts := fastOptions()
	opts.TimeBudget = 300 * time.Millisecond
	opts.DispatchMargin = 100 * time.Millisecond
	opts.CallTimeout = 2 * time.Second

	start := time.Now()
	s, err := h.orchestrator(opts).Run(context.Background(), 10, "")
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Less(t, elapsed, opts.TimeBudget+400*time.Millisecond, "run outlived its budget")

	assert.Equal(t, 1, s.Attempted)
	assert.Zero(t, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	assert.True(t, s.Partial)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, string(synth.TransientNetworkError), s.Failures[0].Kind)
	assert.Contains(t, s.Failures[0].Message, "budget")
	assert.Equal(t, s.Attempted, s.Succeeded+s.Failed+s.Skipped)
}

func TestRunStopsRetryingAtDispatchDeadline(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-a")
	a.fn = func(int, synth.Request) (*synth.Audio, error) {
		return nil, &synth.Error{Kind: synth.RateLimited, Provider: "A", Status: 429, RetryAfter: time.Second, Err: errors.New("slow down")}
	}
	h.items(t, "en", 1)

	opts := fastOptions()
	opts.Retry = RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Second}
	opts.TimeBudget = 400 * time.Millisecond
	opts.DispatchMargin = 200 * time.Millisecond

	start := time.Now()
	s, err := h.orchestrator(opts).Run(context.Background(), 10, "")
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Less(t, elapsed, opts.TimeBudget+400*time.Millisecond)

	assert.Equal(t, 1, a.Calls(), "no retry starts after the dispatch deadline")
	assert.Equal(t, 1, s.Failed)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, string(synth.RateLimited), s.Failures[0].Kind)
}

func TestRunSkipsAuthReattemptAfterDispatchDeadline(t *testing.T) {
	h := newHarness(t)
	a := h.provider(t, "A", "en", "key-old")
	h.items(t, "en", 1)
	a.fn = func(int, synth.Request) (*synth.Audio, error) {
		// Rotate while the call is in flight, then reject after the
		// dispatch window has closed.
		enc, err := h.cipher.Encrypt("key-new")
		if assert.NoError(t, err) {
			assert.NoError(t, h.store.CreateApiCredential(context.Background(), db.CreateApiCredentialParams{
				ID: "cred-A-rotated", ProviderID: "A", EncryptedSecret: enc, CreatedAt: 999,
			}))
		}
		time.Sleep(250 * time.Millisecond)
		return nil, &synth.Error{Kind: synth.AuthError, Provider: "A", Status: 401, Err: errors.New("invalid key")}
	}

	opts := fastOptions()
	opts.TimeBudget = 2 * time.Second
	opts.DispatchMargin = 1900 * time.Millisecond

	s, err := h.orchestrator(opts).Run(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Calls())
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, string(synth.AuthError), s.Failures[0].Kind)
}

func TestRunLanguageFilterAndMax(t *testing.T) {
	h := newHarness(t)
	h.provider(t, "A", "en", "key-a")
	h.provider(t, "B", "de", "key-b")
	h.items(t, "en", 3)
	h.items(t, "de", 3)

	s, err := h.orchestrator(fastOptions()).Run(context.Background(), 2, "de")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Attempted)
	assert.Equal(t, 2, s.Succeeded)
	assert.Zero(t, h.fakes["A"].Calls())
}

type flakySaver struct {
	mu       sync.Mutex
	calls    int
	failures int
}

func (f *flakySaver) Save(context.Context, audiostore.Record) (audiostore.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return audiostore.Result{}, &audiostore.PersistenceError{Op: "insert", Err: errors.New("disk full")}
	}
	return audiostore.Result{ID: "x"}, nil
}

func TestRunPersistenceRetriedOnce(t *testing.T) {
	for _, tt := range []struct {
		failures  int
		succeeded int
		calls     int
	}{
		{failures: 1, succeeded: 1, calls: 2},
		{failures: 5, succeeded: 0, calls: 2},
	} {
		t.Run(fmt.Sprintf("failures=%d", tt.failures), func(t *testing.T) {
			h := newHarness(t)
			h.provider(t, "A", "en", "key-a")
			h.items(t, "en", 1)
			saver := &flakySaver{failures: tt.failures}
			o := NewOrchestrator(h.store, credential.NewResolver(h.store, h.cipher), h.synths, saver, fastOptions())

			s, err := o.Run(context.Background(), 10, "")
			require.NoError(t, err)
			assert.Equal(t, tt.succeeded, s.Succeeded)
			assert.Equal(t, tt.calls, saver.calls)
			if tt.succeeded == 0 {
				assert.Equal(t, audiostore.KindPersistence, s.Failures[0].Kind)
			}
		})
	}
}

func TestRunUnknownProviderKind(t *testing.T) {
	h := newHarness(t)
	dbtest.Provider(t, h.store, "Z", "azure")
	dbtest.Voice(t, h.store, "vz", "Z", "zira", "en", 1)
	enc, err := h.cipher.Encrypt("k")
	require.NoError(t, err)
	dbtest.Credential(t, h.store, "cz", "Z", enc, 1)
	h.items(t, "en", 1)

	s, err := h.orchestrator(fastOptions()).Run(context.Background(), 10, "")
	require.NoError(t, err)
	require.Len(t, s.Failures, 1)
	assert.Equal(t, string(synth.PermanentRequestError), s.Failures[0].Kind)
}
