package bundle

import (
	"context"
	"fmt"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/aaronp/go-kerits/event"
	"github.com/aaronp/go-kerits/kel"
	"github.com/aaronp/go-kerits/store"
)

// ImportResult aggregates per-event outcomes. Errors carries one message
// per failed event.
type ImportResult struct {
	Imported int
	Skipped  int
	Failed   int
	Errors   []string
}

// Importer ingests bundles. Key events are fully re-validated through
// the KEL engine; registry and credential events are frame and SAID
// validated by the store.
type Importer struct {
	store *store.Store
	kel   *kel.Engine
	log   logger.Logger

	skipExisting bool
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithSkipExisting short-circuits events whose said is already stored
// instead of replaying them through validation.
func WithSkipExisting() ImporterOption {
	return func(i *Importer) { i.skipExisting = true }
}

func NewImporter(st *store.Store, kelEngine *kel.Engine, log logger.Logger, opts ...ImporterOption) *Importer {
	imp := &Importer{store: st, kel: kelEngine, log: log}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Import accepts a JSON envelope or raw concatenated CESR and tries each
// event independently. A failed event never aborts the rest.
func (i *Importer) Import(ctx context.Context, data []byte) (*ImportResult, error) {
	frames, err := ParseBundle(data)
	if err != nil {
		return nil, err
	}
	return i.ImportFrames(ctx, frames)
}

// ImportFrames ingests pre-split frames in order.
func (i *Importer) ImportFrames(ctx context.Context, frames [][]byte) (*ImportResult, error) {
	res := &ImportResult{}
	for n, frame := range frames {
		created, err := i.importOne(ctx, frame)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("event %d: %v", n, err))
			continue
		}
		if created {
			res.Imported++
		} else {
			res.Skipped++
		}
	}
	i.log.Debugf("bundle.import: imported=%d skipped=%d failed=%d", res.Imported, res.Skipped, res.Failed)
	return res, nil
}

func (i *Importer) importOne(ctx context.Context, frame []byte) (bool, error) {
	_, env, err := event.DecodeRaw(frame)
	if err != nil {
		return false, err
	}
	stored, err := i.store.HasEvent(ctx, env.D)
	if err != nil {
		return false, err
	}
	if stored {
		if !i.skipExisting {
			// replay through the idempotent store path so divergent
			// content under a known said still surfaces as a conflict
			if _, err := i.store.PutEvent(ctx, frame); err != nil {
				return false, err
			}
		}
		return false, nil
	}
	if event.IsKeyEvent(env.T) {
		if err := i.kel.Ingest(ctx, frame); err != nil {
			return false, err
		}
		return true, nil
	}
	res, err := i.store.PutEvent(ctx, frame)
	if err != nil {
		return false, err
	}
	return res.Created, nil
}
