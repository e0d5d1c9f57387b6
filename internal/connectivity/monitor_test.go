package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestProbeReachableServerMeansOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m := NewMonitor(srv.URL, time.Hour)
	m.Start(context.Background())
	t.Cleanup(m.Stop)

	select {
	case online := <-m.Changes():
		if !online {
			t.Error("first transition = offline, want online")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transition observed")
	}
	if !m.IsOnline() {
		t.Error("IsOnline() = false after successful probe")
	}
}

func TestProbeErrorStatusStillCountsAsOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	m := NewMonitor(srv.URL, time.Hour)
	m.Start(context.Background())
	t.Cleanup(m.Stop)

	select {
	case online := <-m.Changes():
		if !online {
			t.Error("a responding server is reachable regardless of status")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no transition observed")
	}
}

func TestProbeUnreachableServerMeansOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	m := NewMonitor(srv.URL, time.Hour)
	m.Start(context.Background())
	m.Stop()

	if m.IsOnline() {
		t.Error("IsOnline() = true against a closed server")
	}
}

func TestSetOnlineDedupesTransitions(t *testing.T) {
	m := NewMonitor("http://localhost:0", time.Hour)

	m.SetOnline(true)
	m.SetOnline(true)
	m.SetOnline(false)

	var got []bool
	for {
		select {
		case v := <-m.Changes():
			got = append(got, v)
			continue
		default:
		}
		break
	}

	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Errorf("transitions = %v, want [true false]", got)
	}
	if m.IsOnline() {
		t.Error("IsOnline() = true, want false after last SetOnline")
	}
}
