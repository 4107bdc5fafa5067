package pregen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ttsblind/pregen/internal/audiostore"
	"github.com/ttsblind/pregen/internal/credential"
	"github.com/ttsblind/pregen/internal/db"
	"github.com/ttsblind/pregen/internal/logging"
	"github.com/ttsblind/pregen/internal/synth"
)

// Store is what a run reads from the database.
type Store interface {
	PendingWorkStore
	ListActiveProviders(ctx context.Context) ([]db.Provider, error)
}

// CredentialResolver returns the current decrypted credential for a provider.
type CredentialResolver interface {
	Resolve(ctx context.Context, providerID string) (*credential.Credential, error)
}

// Synthesizers hands out the adapter for a provider.
type Synthesizers interface {
	For(cfg synth.ProviderConfig) (synth.Synthesizer, error)
}

// AudioSaver persists synthesized audio idempotently.
type AudioSaver interface {
	Save(ctx context.Context, rec audiostore.Record) (audiostore.Result, error)
}

// Options tune a run.
type Options struct {
	Concurrency int
	Retry       RetryPolicy
	// TimeBudget is the wall-clock ceiling of a run; zero means none.
	TimeBudget time.Duration
	// DispatchMargin is reserved at the end of the budget for in-flight
	// items; no new item starts once it is reached.
	DispatchMargin time.Duration
	// CallTimeout bounds each item's provider calls and writes.
	CallTimeout      time.Duration
	BreakerThreshold int
}

// Orchestrator runs pre-generation batches. It keeps no state between runs.
type Orchestrator struct {
	store    Store
	selector *Selector
	creds    CredentialResolver
	synths   Synthesizers
	audio    AudioSaver
	opts     Options
	now      func() time.Time
}

func NewOrchestrator(store Store, creds CredentialResolver, synths Synthesizers, audio AudioSaver, opts Options) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		store:    store,
		selector: NewSelector(store),
		creds:    creds,
		synths:   synths,
		audio:    audio,
		opts:     opts,
		now:      time.Now,
	}
}

// run is the in-memory state of a single invocation.
type run struct {
	log *slog.Logger
	// dispatch ends at the dispatch deadline; no new item, retry or
	// re-attempt starts after it.
	dispatch context.Context
	// hard ends at the run's wall-clock ceiling. It does not follow the
	// caller's cancellation so in-flight work can finish, but nothing
	// outlives it.
	hard      context.Context
	providers map[string]*providerState
	summary   *collector
}

// Run selects up to maxItems pending items (optionally for one language),
// synthesizes and stores each, and reports the outcome. Only a failure to
// build the work list is returned as an error; item failures are recorded in
// the summary. Run returns by the end of TimeBudget; items still in flight
// then are reported as failed.
func (o *Orchestrator) Run(ctx context.Context, maxItems int, language string) (*Summary, error) {
	started := o.now()
	log := logging.WithContext(ctx).Slog().With("run", started.UTC().Format(time.RFC3339Nano))

	hardCtx, cancelHard := o.withDeadline(context.WithoutCancel(ctx), started, o.opts.TimeBudget)
	defer cancelHard()
	runCtx, cancelRun := o.withDeadline(ctx, started, o.opts.TimeBudget)
	defer cancelRun()
	dispatchCtx, cancelDispatch := o.withDeadline(runCtx, started, o.dispatchWindow())
	defer cancelDispatch()

	// Selecting
	items, err := o.selector.SelectPending(runCtx, maxItems, language)
	if err != nil {
		log.Error("pre-generation run aborted", "kind", KindSelection, "error", err)
		return nil, err
	}
	r := &run{
		log:       log,
		dispatch:  dispatchCtx,
		hard:      hardCtx,
		providers: map[string]*providerState{},
		summary:   newCollector(started, len(items)),
	}
	if len(items) == 0 {
		return r.summary.finish(o.now()), nil
	}

	providers, err := o.store.ListActiveProviders(runCtx)
	if err != nil {
		err = &SelectionError{Err: fmt.Errorf("list providers: %w", err)}
		log.Error("pre-generation run aborted", "kind", KindSelection, "error", err)
		return nil, err
	}
	for _, p := range providers {
		r.providers[p.ID] = newProviderState(p, o.opts.BreakerThreshold, log)
	}

	// Dispatching
	log.Info("pre-generation run started", "items", len(items), "language", language, "max", maxItems)
	sem := semaphore.NewWeighted(int64(o.opts.Concurrency))
	var wg sync.WaitGroup
	for i, item := range items {
		if dispatchCtx.Err() != nil || sem.Acquire(dispatchCtx, 1) != nil {
			r.summary.skipped(len(items) - i)
			log.Warn("dispatch window closed; remaining items skipped", "skipped", len(items)-i)
			break
		}
		r.summary.dispatched(i, item)
		wg.Add(1)
		go func(i int, item WorkItem) {
			defer wg.Done()
			defer sem.Release(1)
			o.process(r, i, item)
		}(i, item)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-hardCtx.Done():
		n := r.summary.abandon(func(item WorkItem) Failure {
			return Failure{
				ItemID:   item.TextItemID,
				Provider: item.ProviderID,
				Voice:    item.Voice,
				Language: item.Language,
				Kind:     string(synth.TransientNetworkError),
				Message:  "run time budget exhausted before the item finished",
			}
		})
		if n > 0 {
			log.Warn("time budget exhausted; in-flight items reported as failed", "items", n)
		}
	}

	// Aggregating
	s := r.summary.finish(o.now())
	log.Info("pre-generation run finished",
		"attempted", s.Attempted,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"duplicates", s.Duplicates,
		"partial", s.Partial,
		"duration_ms", s.DurationMS)
	return s, nil
}

// withDeadline bounds ctx to start+d. A non-positive d leaves it unbounded.
func (o *Orchestrator) withDeadline(ctx context.Context, start time.Time, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, start.Add(d))
}

func (o *Orchestrator) dispatchWindow() time.Duration {
	if o.opts.TimeBudget <= 0 {
		return 0
	}
	if w := o.opts.TimeBudget - o.opts.DispatchMargin; w > 0 {
		return w
	}
	return o.opts.TimeBudget
}

// callContext bounds one provider call or write by CallTimeout and by the
// run's hard deadline, whichever comes first. The dispatch deadline and the
// caller's cancellation do not cut it short.
func (o *Orchestrator) callContext(r *run) (context.Context, context.CancelFunc) {
	if o.opts.CallTimeout > 0 {
		return context.WithTimeout(r.hard, o.opts.CallTimeout)
	}
	return context.WithCancel(r.hard)
}

// process runs one item through credential lookup, synthesis and storage.
func (o *Orchestrator) process(r *run, idx int, item WorkItem) {
	log := r.log.With("item_id", item.TextItemID, "provider", item.ProviderID, "voice", item.Voice)

	var secrets []credential.Secret
	fail := func(err error) {
		f := Failure{
			ItemID:   item.TextItemID,
			Provider: item.ProviderID,
			Voice:    item.Voice,
			Language: item.Language,
			Kind:     KindOf(err),
			Message:  redact(err.Error(), secrets...),
		}
		log.Warn("work item failed", "kind", f.Kind, "error", f.Message)
		r.summary.failed(idx, f)
	}

	ps, ok := r.providers[item.ProviderID]
	if !ok {
		fail(&synth.Error{Kind: synth.PermanentRequestError, Provider: item.ProviderID, Err: errors.New("provider is no longer active")})
		return
	}
	synthesizer, err := o.synths.For(ps.cfg)
	if err != nil {
		fail(err)
		return
	}

	cred, err := o.resolve(r, item.ProviderID)
	if err != nil {
		fail(err)
		return
	}
	secrets = append(secrets, cred.Secret)

	audio, err := o.synthesize(r, ps, synthesizer, item, cred, log)
	if se, ok := synth.AsError(err); ok && se.Kind == synth.AuthError && r.dispatch.Err() == nil {
		// The credential may have been rotated since it was resolved.
		fresh, rerr := o.resolve(r, item.ProviderID)
		if rerr == nil && fresh.ID != cred.ID {
			log.Info("credential rejected; retrying with newer credential", "kind", synth.AuthError)
			secrets = append(secrets, fresh.Secret)
			audio, err = o.synthesize(r, ps, synthesizer, item, fresh, log)
		}
	}
	if err != nil {
		fail(err)
		return
	}

	res, err := o.save(r, item, audio)
	if err != nil {
		fail(err)
		return
	}
	if res.Duplicate {
		log.Info("audio already present; discarded duplicate")
	} else {
		log.Debug("audio stored", "audio_id", res.ID, "bytes", len(audio.Data))
	}
	r.summary.succeeded(idx, res.Duplicate)
}

func (o *Orchestrator) resolve(r *run, providerID string) (*credential.Credential, error) {
	ctx, cancel := o.callContext(r)
	defer cancel()
	return o.creds.Resolve(ctx, providerID)
}

// synthesize calls the provider under its breaker, retrying per policy.
func (o *Orchestrator) synthesize(r *run, ps *providerState, s synth.Synthesizer, item WorkItem, cred *credential.Credential, log *slog.Logger) (*synth.Audio, error) {
	return ps.guard(func() (*synth.Audio, error) {
		var audio *synth.Audio
		_, err := o.opts.Retry.Do(r.dispatch, func(attempt int) error {
			ctx, cancel := o.callContext(r)
			defer cancel()

			if ps.limiter != nil {
				if err := ps.limiter.Wait(ctx); err != nil {
					return &synth.Error{Kind: synth.TransientNetworkError, Provider: ps.cfg.ID, Err: fmt.Errorf("rate limiter: %w", err)}
				}
			}
			a, err := s.Synthesize(ctx, synth.Request{
				Secret:   cred.Secret,
				Text:     item.Text,
				Voice:    item.Voice,
				Language: item.Language,
			})
			if err != nil {
				if synth.IsRetryable(err) {
					log.Debug("provider call failed", "attempt", attempt, "kind", KindOf(err))
				}
				return err
			}
			audio = a
			return nil
		})
		return audio, err
	})
}

// save persists the audio, retrying a failed write once while the dispatch
// window is still open.
func (o *Orchestrator) save(r *run, item WorkItem, audio *synth.Audio) (audiostore.Result, error) {
	ctx, cancel := o.callContext(r)
	defer cancel()

	rec := audiostore.Record{
		TextItemID:  item.TextItemID,
		ProviderID:  item.ProviderID,
		VoiceID:     item.VoiceID,
		Voice:       item.Voice,
		Language:    item.Language,
		ContentType: audio.ContentType,
		Data:        audio.Data,
	}
	res, err := o.audio.Save(ctx, rec)
	var pe *audiostore.PersistenceError
	if errors.As(err, &pe) && ctx.Err() == nil && r.dispatch.Err() == nil {
		res, err = o.audio.Save(ctx, rec)
	}
	return res, err
}
