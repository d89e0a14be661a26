package transport

import "testing"

func TestHubBroadcastDeliversToUnfilteredSubscriber(t *testing.T) {
	h := newHub[string]()
	sub := h.Subscribe(4, nil)
	defer h.Unsubscribe(sub)

	h.Broadcast("order_filled", "fill-1")
	h.Broadcast("order_rejected", "reject-1")

	if got := <-sub.ch; got != "fill-1" {
		t.Fatalf("got %q, want fill-1", got)
	}
	if got := <-sub.ch; got != "reject-1" {
		t.Fatalf("got %q, want reject-1", got)
	}
}

func TestHubBroadcastHonorsKindFilter(t *testing.T) {
	h := newHub[string]()
	sub := h.Subscribe(4, map[string]struct{}{"order_rejected": {}})
	defer h.Unsubscribe(sub)

	h.Broadcast("order_filled", "fill-1")
	h.Broadcast("order_rejected", "reject-1")

	select {
	case got := <-sub.ch:
		if got != "reject-1" {
			t.Fatalf("got %q, want only order_rejected to pass the filter", got)
		}
	default:
		t.Fatalf("expected the filtered subscriber to receive order_rejected")
	}

	select {
	case got := <-sub.ch:
		t.Fatalf("unexpected second delivery %q, order_filled should have been dropped", got)
	default:
	}
}

func TestHubSubscribersReflectsActiveMailboxes(t *testing.T) {
	h := newHub[string]()
	if h.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers on a fresh hub")
	}

	sub := h.Subscribe(1, nil)
	if h.Subscribers() != 1 {
		t.Fatalf("expected 1 subscriber after Subscribe")
	}

	h.Unsubscribe(sub)
	if h.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers after Unsubscribe")
	}
}

func TestParseKindFilter(t *testing.T) {
	if got := parseKindFilter(""); got != nil {
		t.Fatalf("expected nil filter for empty input, got %v", got)
	}

	got := parseKindFilter("order_filled, order_rejected ,")
	if len(got) != 2 {
		t.Fatalf("expected 2 kinds, got %v", got)
	}
	if _, ok := got["order_filled"]; !ok {
		t.Fatalf("expected order_filled in filter set")
	}
	if _, ok := got["order_rejected"]; !ok {
		t.Fatalf("expected order_rejected in filter set")
	}
}
