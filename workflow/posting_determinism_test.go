package workflow

import (
	"sync"
	"testing"
)

// NOTE: These tests are intentionally DB-free. They validate the intended
// posting semantics:
// - at-least-once delivery is safe via durable idempotency
// - per-business serialization prevents racey interleavings inside handlers
//
// Full DB integration tests live alongside the models package and require
// docker (INTEGRATION_TESTS=1).

type fakePoster struct {
	muByBiz map[string]*sync.Mutex
	mu      sync.Mutex
	seen    map[string]bool
	calls   int
}

func newFakePoster() *fakePoster {
	return &fakePoster{
		muByBiz: map[string]*sync.Mutex{},
		seen:    map[string]bool{},
	}
}

func (p *fakePoster) post(businessID, handlerName, messageID string, fn func()) {
	// Serialize per business (models AcquireBusinessPostingLock).
	p.mu.Lock()
	bm := p.muByBiz[businessID]
	if bm == nil {
		bm = &sync.Mutex{}
		p.muByBiz[businessID] = bm
	}
	p.mu.Unlock()

	bm.Lock()
	defer bm.Unlock()

	// Deduplicate (models IdempotencyKey).
	key := businessID + "|" + handlerName + "|" + messageID
	p.mu.Lock()
	if p.seen[key] {
		p.mu.Unlock()
		return
	}
	p.seen[key] = true
	p.mu.Unlock()

	fn()

	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
}

func TestDuplicateCreateDelivery_IsPostedOnce(t *testing.T) {
	p := newFakePoster()

	const (
		biz       = "biz-1"
		handler   = "CreateTransaction"
		messageID = "key-123"
	)

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.post(biz, handler, messageID, func() {})
		}()
	}
	wg.Wait()

	if p.calls != 1 {
		t.Fatalf("expected exactly 1 posting call, got %d", p.calls)
	}
}

func TestPosting_DeterministicUnderConcurrency(t *testing.T) {
	for run := 0; run < 100; run++ {
		p := newFakePoster()
		var wg sync.WaitGroup

		// same scenario, repeated concurrently
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p.post("biz-1", "CreateTransaction", "1", func() {})
				p.post("biz-1", "CreateTransaction", "2", func() {})
				p.post("biz-1", "CreateTransaction", "1", func() {}) // duplicate
			}(i)
		}
		wg.Wait()

		if p.calls != 2 {
			t.Fatalf("run=%d expected 2 unique posts, got %d", run, p.calls)
		}
	}
}
