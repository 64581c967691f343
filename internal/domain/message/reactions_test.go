package message

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestReactionsAddAtMostOncePerUser(t *testing.T) {
	var r Reactions
	userID := uuid.New()
	now := time.Now()

	if !r.Add("👍", userID, "Alice", now) {
		t.Fatal("first add refused")
	}
	if r.Add("👍", userID, "Alice", now) {
		t.Fatal("duplicate (emoji, user) accepted")
	}
	if !r.Add("❤️", userID, "Alice", now) {
		t.Fatal("same user, different emoji refused")
	}
	if len(r["👍"]) != 1 || len(r["❤️"]) != 1 {
		t.Fatalf("reactions = %+v", r)
	}
}

func TestReactionsRemoveCollapsesEmptyKey(t *testing.T) {
	var r Reactions
	a := uuid.New()
	b := uuid.New()
	now := time.Now()
	r.Add("👍", a, "A", now)
	r.Add("👍", b, "B", now)

	if !r.Remove("👍", a) {
		t.Fatal("remove failed")
	}
	if len(r["👍"]) != 1 {
		t.Fatalf("remaining = %+v", r["👍"])
	}
	if r.Remove("👍", a) {
		t.Fatal("second remove of same user succeeded")
	}
	if !r.Remove("👍", b) {
		t.Fatal("remove last failed")
	}
	if _, exists := r["👍"]; exists {
		t.Fatal("emptied emoji key not dropped")
	}
	if r.Remove("🚫", a) {
		t.Fatal("remove on missing emoji succeeded")
	}
}

func TestReactionsScanRoundTrip(t *testing.T) {
	var r Reactions
	r.Add("👍", uuid.New(), "Alice", time.Now().UTC().Truncate(time.Second))

	raw, err := r.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}

	var decoded Reactions
	if err := decoded.Scan(raw); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(decoded["👍"]) != 1 || decoded["👍"][0].UserName != "Alice" {
		t.Fatalf("decoded = %+v", decoded)
	}

	var fromNil Reactions
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if fromNil != nil {
		t.Fatalf("nil column should stay nil, got %+v", fromNil)
	}
}
