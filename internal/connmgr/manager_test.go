package connmgr

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"alertmesh/internal/broker"
)

func newTestManager(t *testing.T) (*Manager, *broker.Publisher, *miniredis.Miniredis, *atomic.Int32) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cfg := broker.Config{Addr: mr.Addr(), Cluster: "ap2"}

	var dials atomic.Int32
	m := NewWithDialer(func(ctx context.Context) (*broker.Conn, error) {
		dials.Add(1)
		return broker.Dial(ctx, cfg)
	})
	t.Cleanup(func() { m.Close() })

	pub, err := broker.NewPublisher(cfg)
	if err != nil {
		t.Fatalf("publisher failed: %v", err)
	}
	t.Cleanup(func() { pub.Close() })

	return m, pub, mr, &dials
}

// waitSubscribed blocks until the alert channel has a live subscriber,
// so a following publish cannot race the subscription.
func waitSubscribed(t *testing.T, mr *miniredis.Miniredis) {
	t.Helper()
	channel := "ap2:" + broker.TopicCriticalAlert
	deadline := time.Now().Add(2 * time.Second)
	for mr.Publish(channel, "ping") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no subscriber appeared on %s", channel)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConcurrentSubscribesShareOneConnection(t *testing.T) {
	m, _, _, dials := newTestManager(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	unsubs := make([]func(), n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			unsubs[i], errs[i] = m.SubscribeToEvent(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, func(map[string]interface{}) {})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("subscribe %d failed: %v", i, err)
		}
	}
	if got := dials.Load(); got != 1 {
		t.Fatalf("expected exactly one physical connection, got %d", got)
	}

	for _, unsub := range unsubs {
		unsub()
	}
}

func TestUnsubscribeKeepsConnectionAlive(t *testing.T) {
	m, pub, mr, dials := newTestManager(t)
	ctx := context.Background()

	kept := make(chan map[string]interface{}, 1)
	unsubKept, err := m.SubscribeToEvent(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, func(p map[string]interface{}) {
		kept <- p
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer unsubKept()

	dropped := make(chan map[string]interface{}, 1)
	unsubDropped, err := m.SubscribeToEvent(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, func(p map[string]interface{}) {
		dropped <- p
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Removing one binding must not affect the remaining one.
	unsubDropped()
	waitSubscribed(t, mr)

	if err := pub.Publish(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, map[string]interface{}{"fileName": "x.exe"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case p := <-kept:
		if p["fileName"] != "x.exe" {
			t.Fatalf("unexpected payload: %v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("remaining binding stopped receiving after an unrelated unsubscribe")
	}
	select {
	case <-dropped:
		t.Fatalf("unsubscribed handler still received a delivery")
	case <-time.After(100 * time.Millisecond):
	}

	if got := dials.Load(); got != 1 {
		t.Fatalf("expected one physical connection throughout, got %d", got)
	}
}

func TestTopicResubscribeAfterLastBindingRemoved(t *testing.T) {
	m, pub, mr, dials := newTestManager(t)
	ctx := context.Background()

	unsub, err := m.SubscribeToEvent(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, func(map[string]interface{}) {})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	// Last binding gone: topic is unsubscribed, connection stays.
	unsub()

	got := make(chan map[string]interface{}, 1)
	unsub2, err := m.SubscribeToEvent(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, func(p map[string]interface{}) {
		got <- p
	})
	if err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
	defer unsub2()
	waitSubscribed(t, mr)

	if err := pub.Publish(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, map[string]interface{}{"n": int64(2)}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatalf("resubscription on the kept connection never delivered")
	}

	if got := dials.Load(); got != 1 {
		t.Fatalf("expected the original connection to be reused, got %d dials", got)
	}
}

func TestUnsubscribeTokenIsIdempotent(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	unsubA, err := m.SubscribeToEvent(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, func(map[string]interface{}) {})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	unsubB, err := m.SubscribeToEvent(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, func(map[string]interface{}) {})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	// Calling the same token twice must not release the other binding's
	// topic reference.
	unsubA()
	unsubA()

	m.mu.Lock()
	refs := m.topicRefs[broker.TopicCriticalAlert]
	m.mu.Unlock()
	if refs != 1 {
		t.Fatalf("expected 1 topic reference, got %d", refs)
	}

	unsubB()
}
