package svc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/ttsblind/pregen/internal/audiostore"
	"github.com/ttsblind/pregen/internal/config"
	"github.com/ttsblind/pregen/internal/credential"
	"github.com/ttsblind/pregen/internal/db"
	"github.com/ttsblind/pregen/internal/logging"
	"github.com/ttsblind/pregen/internal/pregen"
	"github.com/ttsblind/pregen/internal/synth"
)

// Version is the build version reported by /health.
var Version = "dev"

// Runner executes one pre-generation batch.
type Runner interface {
	Run(ctx context.Context, maxItems int, language string) (*pregen.Summary, error)
}

// AudioReader loads stored audio files.
type AudioReader interface {
	Open(ctx context.Context, id string) (*audiostore.File, error)
}

// ServiceContext holds the process-wide handles. Everything is built once in
// NewServiceContext and passed down explicitly.
type ServiceContext struct {
	Config config.Config

	DB       *db.Store
	Cipher   *credential.Cipher
	Resolver *credential.Resolver
	Synths   *synth.Registry

	Audio  AudioReader
	Pregen Runner

	closers []func()
}

// NewServiceContext opens the database, loads the master key and wires the
// orchestrator. The caller owns Close.
func NewServiceContext(ctx context.Context, c config.Config) (*ServiceContext, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	key, err := credential.LoadKey(c.Security.EncryptionKey, c.IsKeyringEnabled())
	if err != nil {
		return nil, fmt.Errorf("load master key: %w", err)
	}
	cipher, err := credential.NewCipher(key)
	if err != nil {
		return nil, err
	}

	store, err := db.NewSQLite(c.Database.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	svcCtx := &ServiceContext{
		Config:   c,
		DB:       store,
		Cipher:   cipher,
		Resolver: credential.NewResolver(store, cipher),
		Synths:   synth.NewRegistry(&http.Client{Timeout: c.Pregen.CallTimeout}),
	}
	svcCtx.closers = append(svcCtx.closers, func() { store.Close() })

	blobs, err := svcCtx.openBlobs(ctx, c.Storage)
	if err != nil {
		svcCtx.Close()
		return nil, err
	}
	audio := audiostore.New(store, blobs)
	svcCtx.Audio = audio
	svcCtx.Pregen = pregen.NewOrchestrator(store, svcCtx.Resolver, svcCtx.Synths, audio, OrchestratorOptions(c.Pregen))

	if !c.IsTriggerOpen() {
		logging.Infof("Trigger endpoint protected by shared secret")
	} else {
		logging.Warnf("Security.CronSecret is empty: the trigger endpoint is open to anyone who can reach it")
	}
	logging.Infof("Audio storage backend: %s", audio.Backend())
	return svcCtx, nil
}

// OrchestratorOptions maps the Pregen config section onto run options.
func OrchestratorOptions(p config.PregenConf) pregen.Options {
	return pregen.Options{
		Concurrency: p.Concurrency,
		Retry: pregen.RetryPolicy{
			MaxAttempts: p.MaxAttempts,
			BaseDelay:   p.BaseDelay,
			MaxDelay:    p.MaxDelay,
		},
		TimeBudget:       p.TimeBudget,
		DispatchMargin:   p.DispatchMargin,
		CallTimeout:      p.CallTimeout,
		BreakerThreshold: p.BreakerThreshold,
	}
}

func (s *ServiceContext) openBlobs(ctx context.Context, sc config.StorageConf) (audiostore.Blobs, error) {
	switch sc.Backend {
	case config.BackendDB:
		return nil, nil
	case config.BackendFS:
		return audiostore.NewFSBlobs(sc.Dir)
	case config.BackendNATS:
		nc, err := nats.Connect(sc.NATSURL,
			nats.Name("pregen"),
			nats.Timeout(10*time.Second),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		s.closers = append(s.closers, func() { nc.Drain() })
		js, err := jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		return audiostore.NewNATSBlobs(ctx, js, sc.NATSBucket)
	}
	return nil, errors.New("unknown storage backend " + sc.Backend)
}

// Close releases resources in reverse order of acquisition.
func (s *ServiceContext) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
