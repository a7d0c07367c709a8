// Package syncer drives the synchronization loop: flush the outbox, then
// pull the delta feed, on a timer and with backoff while the server is
// unreachable. The local cache stays usable throughout; sync failures only
// delay convergence.
package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/maildrift/maildrift/internal/client/outbox"
	"github.com/maildrift/maildrift/internal/client/store"
	"github.com/maildrift/maildrift/internal/common"
	"github.com/maildrift/maildrift/internal/feed"
	"github.com/maildrift/maildrift/internal/logging"
)

// API is the server surface the syncer needs: the feed pull plus the
// mutation push it hands to the outbox.
type API interface {
	outbox.Sender
	Changes(ctx context.Context, since int64) (*feed.Bundle, error)
}

type Syncer struct {
	store    *store.Store
	outbox   *outbox.Outbox
	api      API
	logger   logging.Logger
	interval time.Duration
	kick     <-chan struct{}
}

// New builds a syncer. A pulse on kick requests a cycle ahead of the timer;
// a nil kick channel means timer-only operation.
func New(st *store.Store, ob *outbox.Outbox, api API, logger logging.Logger, interval time.Duration, kick <-chan struct{}) *Syncer {
	return &Syncer{
		store:    st,
		outbox:   ob,
		api:      api,
		logger:   logger.With("module", "syncer"),
		interval: interval,
		kick:     kick,
	}
}

// Pull fetches everything changed since the stored watermark and merges it.
// A zero watermark is the cold start: the full account state comes down,
// tombstones included. The watermark only advances after the merge commits,
// so a crash mid-pull re-fetches rather than skips.
func (s *Syncer) Pull(ctx context.Context) error {
	since, err := s.store.Watermark(ctx)
	if err != nil {
		return err
	}

	bundle, err := s.api.Changes(ctx, since)
	if err != nil {
		return err
	}
	if err := s.store.MergeBundle(ctx, bundle); err != nil {
		return err
	}

	s.logger.Debug(ctx, "pull complete", "since", since, "watermark", bundle.Watermark)
	return nil
}

// SyncOnce runs one full cycle: push pending mutations first so the
// following pull reflects them, then pull.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	if err := s.outbox.Flush(ctx, s.api); err != nil {
		return err
	}
	return s.Pull(ctx)
}

// Run loops SyncOnce every interval until ctx is cancelled. Kicks and ticks
// are served from the same loop, so two cycles never flush the outbox
// concurrently. Transient failures back off fibonacci-style within a cycle;
// anything else is logged and waits for the next trigger.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.syncWithBackoff(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn(ctx, "sync cycle failed", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-s.kick:
		}
	}
}

func (s *Syncer) syncWithBackoff(ctx context.Context) error {
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := s.SyncOnce(ctx)
		if errors.Is(err, common.ErrTransient) {
			return retry.RetryableError(err)
		}
		return err
	})
}
