package websocket

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func newStalledClient(hub *Hub) *Client {
	// buffer of one: the first broadcast fills it, the second evicts
	return &Client{
		hub:        hub,
		send:       make(chan []byte, 1),
		logger:     hub.logger,
		remoteAddr: "test-client",
	}
}

func waitForClientCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client count = %d, want %d", hub.GetClientCount(), want)
}

func TestBroadcastEvictsStalledClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	go hub.Run()

	const numClients = 50
	for i := 0; i < numClients; i++ {
		hub.register <- newStalledClient(hub)
	}
	waitForClientCount(t, hub, numClients)

	// Nobody drains the send channels. The first broadcast saturates
	// every buffer, the second one evicts all clients. Counting
	// concurrently exercises the map against the eviction path.
	countDone := make(chan struct{})
	go func() {
		defer close(countDone)
		for i := 0; i < 1000; i++ {
			hub.GetClientCount()
		}
	}()

	hub.Broadcast(NewModuleEventMessage("hv0", "fill", ""))
	hub.Broadcast(NewModuleEventMessage("hv0", "evict", ""))

	<-countDone
	waitForClientCount(t, hub, 0)
}

func TestUnregisterUnknownClientIsNoOp(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	go hub.Run()

	c := newStalledClient(hub)
	hub.register <- c
	waitForClientCount(t, hub, 1)

	hub.unregister <- c
	waitForClientCount(t, hub, 0)

	// a second unregister of the same client must not close send twice
	hub.unregister <- c

	// the hub survived: it still accepts registrations
	hub.register <- newStalledClient(hub)
	waitForClientCount(t, hub, 1)
}
