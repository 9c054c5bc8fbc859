package events

import "testing"

func TestHubDeliversToAllSubscribers(t *testing.T) {
	hub := NewHub(4)
	first, cancelFirst := hub.Subscribe()
	defer cancelFirst()
	second, cancelSecond := hub.Subscribe()
	defer cancelSecond()

	hub.Publish(KindTimer, "tick")

	for i, ch := range []<-chan Event{first, second} {
		event := <-ch
		if event.Kind != KindTimer || event.Payload != "tick" {
			t.Fatalf("subscriber %d got %+v", i, event)
		}
	}
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe()
	defer cancel()

	hub.Publish(KindAudio, 1)
	hub.Publish(KindAudio, 2)

	event := <-ch
	if event.Payload != 1 {
		t.Fatalf("expected first event kept, got %v", event.Payload)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected overflow to be dropped, got %v", extra)
	default:
	}
}

func TestHubCancelAndClose(t *testing.T) {
	hub := NewHub(1)
	ch, cancel := hub.Subscribe()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after cancel")
	}
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers, got %d", hub.Subscribers())
	}

	other, _ := hub.Subscribe()
	hub.Close()
	if _, ok := <-other; ok {
		t.Fatal("expected channel closed after hub close")
	}

	late, _ := hub.Subscribe()
	if _, ok := <-late; ok {
		t.Fatal("expected subscription on closed hub to be closed")
	}
}
