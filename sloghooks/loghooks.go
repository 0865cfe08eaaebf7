// Package sloghooks emits requery hook events through log/slog, with optional
// sampling for the chatty ones (fetch starts and dedups fire on every read
// of a stale entry).
package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/requery"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FetchEvery uint64
	DedupEvery uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fetchCtr atomic.Uint64
	dedupCtr atomic.Uint64
}

var _ requery.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchStarted(key string, seq uint64) {
	if h.l == nil || !sample(h.opts.FetchEvery, &h.fetchCtr) {
		return
	}
	h.l.Debug("requery.fetch_started", "key", key, "seq", seq)
}

func (h *Hooks) FetchDeduped(key string) {
	if h.l == nil || !sample(h.opts.DedupEvery, &h.dedupCtr) {
		return
	}
	h.l.Debug("requery.fetch_deduped", "key", key)
}

func (h *Hooks) RunSuperseded(key string, seq uint64) {
	if h.l == nil {
		return
	}
	h.l.Debug("requery.run_superseded", "key", key, "seq", seq)
}

func (h *Hooks) RetryScheduled(key string, attempt int, delay time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Warn("requery.retry_scheduled", "key", key, "attempt", attempt, "delay", delay)
}

func (h *Hooks) EntryEvicted(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("requery.entry_evicted", "key", key)
}

func (h *Hooks) Invalidated(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("requery.invalidated", "key", key)
}

func (h *Hooks) SnapshotRestored(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("requery.snapshot_restored", "key", key)
}

func (h *Hooks) SnapshotSkipped(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("requery.snapshot_skipped", "key", key, "reason", reason)
}
