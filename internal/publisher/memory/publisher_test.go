package memory

import (
	"context"
	"errors"
	"testing"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "sites", map[string]string{"event": "site.crawled"})
	if err != nil || id1 != "memory-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "analyses", "payload")
	if err != nil || id2 != "memory-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	msgs := pub.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Data) != `{"event":"site.crawled"}` {
		t.Fatalf("unexpected encoded payload %s", msgs[0].Data)
	}
	if got := pub.MessagesFor("analyses"); len(got) != 1 || got[0].ID != "memory-2" {
		t.Fatalf("unexpected topic filter result: %+v", got)
	}

	msgs[0].Topic = "modified"
	if pub.Messages()[0].Topic == "modified" {
		t.Fatal("expected Messages() to return a copy")
	}
}

func TestPublisherFailures(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("unavailable")
	pub.FailWith(boom)
	if _, err := pub.Publish(context.Background(), "sites", "x"); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := pub.Publish(context.Background(), "sites", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
	pub.FailWith(nil)
	if _, err := pub.Publish(context.Background(), "sites", "x"); err != nil {
		t.Fatalf("expected success after reset, got %v", err)
	}
	if len(pub.Messages()) != 1 {
		t.Fatalf("expected only the successful publish to be recorded")
	}
}
