package main

import (
	"encoding/json"
	"testing"
	"time"
)

func TestHubBroadcastReachesClients(t *testing.T) {
	hub := NewWSHub()
	t.Cleanup(hub.Close)

	client := &WSClient{id: "c1", send: make(chan []byte, 4), hub: hub}
	hub.register <- client

	hub.SyncStarted(2)

	select {
	case raw := <-client.send:
		var envelope WSEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		if envelope.Type != EventSyncStarted {
			t.Errorf("type = %q, want %q", envelope.Type, EventSyncStarted)
		}
		if envelope.Data["pending"] != float64(2) {
			t.Errorf("pending = %v, want 2", envelope.Data["pending"])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never reached the client")
	}
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewWSHub()

	client := &WSClient{id: "c1", send: make(chan []byte, 4), hub: hub}
	hub.register <- client

	hub.Close()
	hub.Close() // idempotent

	select {
	case _, ok := <-client.send:
		if ok {
			t.Fatal("expected the send channel closed, got a message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client send channel never closed")
	}
}
