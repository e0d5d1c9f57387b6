// Package scheduler drives background sync: periodic drains while online
// and an immediate drain on every reconnect.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SyncRunner is the drain operation the scheduler triggers.
type SyncRunner interface {
	SyncWithServer(ctx context.Context) error
}

// Connectivity exposes the online state the scheduler gates on.
type Connectivity interface {
	IsOnline() bool
	Changes() <-chan bool
}

// DefaultSyncInterval is how often a drain runs while online.
const DefaultSyncInterval = time.Minute

// Scheduler owns the background sync loop. While online it drains the queue
// every interval; when connectivity flips from offline to online it drains
// immediately instead of waiting for the next tick.
type Scheduler struct {
	runner       SyncRunner
	connectivity Connectivity
	syncInterval time.Duration

	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastSync  time.Time
}

// NewScheduler creates a Scheduler. A zero interval falls back to
// DefaultSyncInterval.
func NewScheduler(runner SyncRunner, connectivity Connectivity, syncInterval time.Duration) *Scheduler {
	if syncInterval <= 0 {
		syncInterval = DefaultSyncInterval
	}
	return &Scheduler{
		runner:       runner,
		connectivity: connectivity,
		syncInterval: syncInterval,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	log.Info().Dur("interval", s.syncInterval).Msg("sync scheduler started")
}

// Stop halts the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	log.Info().Msg("sync scheduler stopped")
}

// LastSync returns when the last drain was triggered, zero if none yet.
func (s *Scheduler) LastSync() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSync
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	if s.connectivity.IsOnline() {
		s.drain(ctx)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case online := <-s.connectivity.Changes():
			if online {
				// Flush whatever accumulated while offline.
				s.drain(ctx)
				ticker.Reset(s.syncInterval)
			}
		case <-ticker.C:
			if s.connectivity.IsOnline() {
				s.drain(ctx)
			}
		}
	}
}

func (s *Scheduler) drain(ctx context.Context) {
	s.mu.Lock()
	s.lastSync = time.Now()
	s.mu.Unlock()

	if err := s.runner.SyncWithServer(ctx); err != nil {
		log.Error().Err(err).Msg("background sync failed")
	}
}
