// Package connectivity tracks whether the remote server is reachable.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultProbeInterval is how often the monitor re-checks reachability.
const DefaultProbeInterval = 30 * time.Second

// DefaultProbeTimeout bounds a single reachability probe.
const DefaultProbeTimeout = 5 * time.Second

// Monitor polls a probe URL and exposes the current online state. Any HTTP
// response, including an error status, counts as online; only a transport
// failure means offline. Platform code that learns about connectivity
// changes out of band can short-circuit the poll with SetOnline.
type Monitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client

	online  atomic.Bool
	changes chan bool

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMonitor creates a Monitor that probes probeURL every interval. A zero
// interval falls back to DefaultProbeInterval. The monitor starts offline
// until the first probe or SetOnline call says otherwise.
func NewMonitor(probeURL string, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	return &Monitor{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: DefaultProbeTimeout},
		changes:  make(chan bool, 8),
		stopCh:   make(chan struct{}),
	}
}

// IsOnline reports the most recently observed state.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// Changes delivers state transitions. Sends are non-blocking; a slow
// consumer misses intermediate flips but IsOnline always has the latest.
func (m *Monitor) Changes() <-chan bool {
	return m.changes
}

// SetOnline records a state reported by the platform, emitting a transition
// if it differs from the current one.
func (m *Monitor) SetOnline(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	log.Info().Bool("online", online).Msg("connectivity changed")
	select {
	case m.changes <- online:
	default:
	}
}

// Start probes once immediately, then keeps probing every interval until
// Stop is called or ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.SetOnline(m.probe(ctx))

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SetOnline(m.probe(ctx))
			}
		}
	}()
}

// Stop halts probing and waits for the poll goroutine to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
