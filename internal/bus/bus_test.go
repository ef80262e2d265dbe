package bus

import (
	"slices"
	"sync"
	"testing"
)

// received empties a subscription. Publish is synchronous, so anything
// published before the call is already buffered.
func received(ch <-chan Event) []string {
	var kinds []string
	for len(ch) > 0 {
		kinds = append(kinds, (<-ch).Kind)
	}
	return kinds
}

func TestRouting(t *testing.T) {
	published := []string{
		KindWAMessage,
		KindSessionStatusChanged,
		KindSyncConnected,
		GatewayKind("messages.upsert"),
		KindMessageSendAck,
		KindSessionLoggedOut,
	}
	tests := []struct {
		namespace string
		want      []string
	}{
		{NamespaceWA, []string{KindWAMessage}},
		{NamespaceSession, []string{KindSessionStatusChanged, KindSessionLoggedOut}},
		{NamespaceSync, []string{KindSyncConnected}},
		{NamespaceGateway, []string{"gateway.messages.upsert"}},
		{KindMessageSendAck, []string{KindMessageSendAck}},
		{"", published},
		{"nothing.", nil},
	}

	b := New()
	subs := make([]<-chan Event, len(tests))
	for i, tt := range tests {
		ch, unsub := b.Subscribe(tt.namespace, len(published))
		t.Cleanup(unsub)
		subs[i] = ch
	}
	for _, kind := range published {
		b.Publish(NewEvent(kind, nil))
	}

	for i, tt := range tests {
		if got := received(subs[i]); !slices.Equal(got, tt.want) {
			t.Errorf("namespace %q got %v, want %v", tt.namespace, got, tt.want)
		}
	}
}

func TestNewEventStamps(t *testing.T) {
	evt := NewEvent(KindWAReceipt, 42)
	if evt.Timestamp.IsZero() || evt.Payload != 42 || evt.Kind != "wa.receipt" {
		t.Errorf("NewEvent = %+v", evt)
	}
}

func TestFullSubscriberDrops(t *testing.T) {
	b := New()
	var dropped []string
	b.OnDrop(func(kind string) { dropped = append(dropped, kind) })

	slow, unsubSlow := b.Subscribe(NamespaceWA, 1)
	defer unsubSlow()
	roomy, unsubRoomy := b.Subscribe(NamespaceWA, 4)
	defer unsubRoomy()

	b.Publish(NewEvent(KindWAMessage, nil))
	b.Publish(NewEvent(KindWAReceipt, nil))

	if got := received(slow); !slices.Equal(got, []string{KindWAMessage}) {
		t.Errorf("slow subscriber got %v", got)
	}
	if got := received(roomy); len(got) != 2 {
		t.Errorf("a full neighbour cost the roomy subscriber events: %v", got)
	}
	if !slices.Equal(dropped, []string{KindWAReceipt}) {
		t.Errorf("dropped = %v", dropped)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceSession, 4)
	_, keep := b.Subscribe(NamespaceSync, 4)
	defer keep()

	unsub()
	unsub()
	b.Publish(NewEvent(KindSessionLoggedOut, nil))

	if got := received(ch); got != nil {
		t.Errorf("got %v after unsubscribe", got)
	}
	if n := b.Subscribers(); n != 1 {
		t.Errorf("Subscribers() = %d, want 1", n)
	}
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(NamespaceWA, 1000)
	defer unsub()

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 50 {
				b.Publish(NewEvent(KindWAPresence, nil))
			}
		})
		wg.Go(func() {
			_, u := b.Subscribe(NamespaceSync, 1)
			u()
		})
	}
	wg.Wait()

	if got := len(received(ch)); got != 500 {
		t.Errorf("received %d events, want 500", got)
	}
}
