// Package sync drains the pending mutation queue to the server.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rsahai/bizkeeper/internal/apperr"
	"github.com/rsahai/bizkeeper/internal/models"
	"github.com/rsahai/bizkeeper/internal/remote"
	"github.com/rsahai/bizkeeper/internal/store"
)

// DefaultMaxRetries is the attempt ceiling before an item is parked in the
// failed bucket.
const DefaultMaxRetries = 3

// DefaultRequestTimeout bounds one dispatch to the server. A timed-out
// dispatch counts as an ordinary transient failure.
const DefaultRequestTimeout = 15 * time.Second

// Broadcaster receives sync lifecycle events. All methods are called from
// the draining goroutine; implementations must not block.
type Broadcaster interface {
	SyncStarted(pending int)
	SyncCompleted(delivered, evicted int, took time.Duration)
	ItemEvicted(item models.SyncItem)
}

// Config tunes an Engine. Zero values fall back to the defaults.
type Config struct {
	MaxRetries     int
	RequestTimeout time.Duration
	Events         Broadcaster
}

// Result summarizes one drain pass.
type Result struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Delivered int
	Evicted   int
	Remaining int
}

// Engine replays pending mutations against the server, strictly in enqueue
// order. At most one drain runs at a time; a second SyncWithServer call
// while a drain is in flight is a no-op.
type Engine struct {
	store  *store.Manager
	client remote.Client

	maxRetries     int
	requestTimeout time.Duration
	events         Broadcaster

	mu       sync.Mutex
	draining bool
	lastRun  *Result
}

// NewEngine creates an Engine over the given store and remote client.
func NewEngine(st *store.Manager, client remote.Client, cfg Config) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Engine{
		store:          st,
		client:         client,
		maxRetries:     cfg.MaxRetries,
		requestTimeout: cfg.RequestTimeout,
		events:         cfg.Events,
	}
}

// LastResult returns the summary of the most recent completed drain, or nil
// if none has run yet.
func (e *Engine) LastResult() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRun
}

// SyncWithServer drains the pending queue item by item. Each item is removed
// from the queue only after the server acknowledges it, so an interrupted
// drain resumes from the first unacknowledged item on the next call. A
// dispatch failure never aborts the pass; the item's retry count is bumped
// (or the item is parked as failed) and the drain moves on. The returned
// error reports local store trouble or context cancellation, never an
// individual dispatch failure.
func (e *Engine) SyncWithServer(ctx context.Context) error {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		log.Debug().Msg("sync already in progress, skipping")
		return nil
	}
	e.draining = true
	e.mu.Unlock()

	result := &Result{StartTime: time.Now()}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		e.mu.Lock()
		e.lastRun = result
		e.draining = false
		e.mu.Unlock()
		if e.events != nil {
			e.events.SyncCompleted(result.Delivered, result.Evicted, result.Duration)
		}
	}()

	items, err := e.store.PendingItems(ctx)
	if err != nil {
		return apperr.Wrap(apperr.ErrSyncFailed, "load pending queue", err)
	}
	result.Remaining = len(items)
	if e.events != nil {
		e.events.SyncStarted(len(items))
	}
	if len(items) == 0 {
		return nil
	}

	log.Info().Int("pending", len(items)).Msg("sync started")

	for _, item := range items {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := e.dispatch(ctx, item); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			evicted, recErr := e.store.RecordItemFailure(ctx, item, err, e.maxRetries)
			if recErr != nil {
				return apperr.Wrap(apperr.ErrSyncFailed, "record item failure", recErr)
			}
			if evicted {
				result.Evicted++
				result.Remaining--
				log.Error().
					Int64("seq", item.LocalSeq).
					Str("op", string(item.Op)).
					Str("collection", item.Collection).
					Str("entity", item.EntityID).
					Int("retries", item.Retries+1).
					Err(err).
					Msg("item moved to failed bucket")
				if e.events != nil {
					e.events.ItemEvicted(item)
				}
			} else {
				log.Warn().
					Int64("seq", item.LocalSeq).
					Str("entity", item.EntityID).
					Err(err).
					Msg("dispatch failed, will retry")
			}
			continue
		}

		if err := e.store.MarkItemDelivered(ctx, item); err != nil {
			return apperr.Wrap(apperr.ErrSyncFailed, "mark item delivered", err)
		}
		result.Delivered++
		result.Remaining--
	}

	log.Info().
		Int("delivered", result.Delivered).
		Int("evicted", result.Evicted).
		Dur("took", time.Since(result.StartTime)).
		Msg("sync finished")
	return nil
}

func (e *Engine) dispatch(ctx context.Context, item models.SyncItem) error {
	reqCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	switch item.Op {
	case models.OpCreate:
		return e.client.Post(reqCtx, item.Collection, item.EntityID, item.Payload)
	case models.OpUpdate:
		return e.client.Put(reqCtx, item.Collection, item.EntityID, item.Payload)
	case models.OpDelete:
		return e.client.Delete(reqCtx, item.Collection, item.EntityID)
	default:
		return apperr.New(apperr.ErrSyncFailed, "unknown operation: "+string(item.Op))
	}
}
