package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	care_errors "carelink/pkg/errors"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func waitSubscribed(t *testing.T, c *Client, channel string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.IsSubscribed(channel) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client never subscribed to %s", channel)
}

func recvPayload(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no payload received")
		return nil
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	hub := startHub(t)

	alice := NewClient(nil, "alice", "conn-a")
	bob := NewClient(nil, "bob", "conn-b")
	outsider := NewClient(nil, "carol", "conn-c")
	for _, c := range []*Client{alice, bob, outsider} {
		hub.Register(c)
	}
	hub.Subscribe(alice, "channel:conversation:1")
	hub.Subscribe(bob, "channel:conversation:1")
	waitSubscribed(t, alice, "channel:conversation:1")
	waitSubscribed(t, bob, "channel:conversation:1")

	hub.Broadcast("channel:conversation:1", []byte("hello"))

	if got := recvPayload(t, alice); string(got) != "hello" {
		t.Fatalf("alice got %q", got)
	}
	if got := recvPayload(t, bob); string(got) != "hello" {
		t.Fatalf("bob got %q", got)
	}
	select {
	case msg := <-outsider.Send:
		t.Fatalf("outsider received %q", msg)
	default:
	}
}

func TestBroadcastToUserExceptSkipsSender(t *testing.T) {
	hub := startHub(t)

	typist := NewClient(nil, "typist", "conn-t")
	peer := NewClient(nil, "peer", "conn-p")
	hub.Register(typist)
	hub.Register(peer)
	hub.Subscribe(typist, "channel:conversation:9")
	hub.Subscribe(peer, "channel:conversation:9")
	waitSubscribed(t, typist, "channel:conversation:9")
	waitSubscribed(t, peer, "channel:conversation:9")

	hub.BroadcastToUserExcept("channel:conversation:9", "typist", []byte("typing"))

	if got := recvPayload(t, peer); string(got) != "typing" {
		t.Fatalf("peer got %q", got)
	}
	select {
	case msg := <-typist.Send:
		t.Fatalf("typist echoed their own event: %q", msg)
	default:
	}
}

func TestDeliverToUser(t *testing.T) {
	hub := startHub(t)

	client := NewClient(nil, "user-1", "conn-1")
	hub.Register(client)
	waitRegistered(t, hub, client)

	connID, err := hub.DeliverToUser(context.Background(), "user-1", []byte("frame"))
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if connID != "conn-1" {
		t.Fatalf("connection id = %s", connID)
	}
	if got := recvPayload(t, client); string(got) != "frame" {
		t.Fatalf("payload = %q", got)
	}

	_, err = hub.DeliverToUser(context.Background(), "nobody", []byte("frame"))
	if !errors.Is(err, care_errors.ErrNotFound) {
		t.Fatalf("unknown user: got %v, want ErrNotFound", err)
	}
}

func TestDeliverToUserHonorsDeadline(t *testing.T) {
	hub := startHub(t)

	client := NewClient(nil, "user-1", "conn-1")
	hub.Register(client)
	waitRegistered(t, hub, client)

	// Saturate the send buffer so TrySend must block.
	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("fill")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := hub.DeliverToUser(ctx, "user-1", []byte("frame"))
	if err == nil {
		t.Fatal("delivery to a saturated client should time out")
	}
}

func TestDeliverToUserSurvivesDisconnect(t *testing.T) {
	hub := startHub(t)

	client := NewClient(nil, "user-1", "conn-1")
	hub.Register(client)
	waitRegistered(t, hub, client)

	// Fill the buffer so the delivery below parks waiting for space.
	for i := 0; i < cap(client.Send); i++ {
		client.Send <- []byte("fill")
	}

	errCh := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, err := hub.DeliverToUser(ctx, "user-1", []byte("frame"))
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)

	hub.Unregister(client)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClientClosed) {
			t.Fatalf("parked delivery: got %v, want ErrClientClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("parked delivery never returned after disconnect")
	}

	if err := client.TrySend(context.Background(), []byte("late")); !errors.Is(err, ErrClientClosed) {
		t.Fatalf("send after disconnect: got %v, want ErrClientClosed", err)
	}
	client.SendMessage([]byte("late")) // must not panic
}

func TestUnregisterCleansUp(t *testing.T) {
	hub := startHub(t)

	client := NewClient(nil, "user-1", "conn-1")
	hub.Register(client)
	waitRegistered(t, hub, client)
	hub.Subscribe(client, "channel:user:user-1")
	waitSubscribed(t, client, "channel:user:user-1")

	hub.Unregister(client)
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if !hub.HasUser("user-1") {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if hub.HasUser("user-1") {
		t.Fatal("user still present after unregister")
	}
	if hub.GetClientCount() != 0 {
		t.Fatalf("client count = %d", hub.GetClientCount())
	}
}

func waitRegistered(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.HasUser(c.UserID) {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("client for %s never registered", c.UserID)
}
