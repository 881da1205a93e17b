package service

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ExportedSessionQueue is an exported alias so _test packages can test the queue.
type ExportedSessionQueue = sessionQueue

// ─────────────────────────────────────────────────────────────
// sessionQueue: one generation at a time per design session
// ─────────────────────────────────────────────────────────────

// sessionQueue serializes work per session key. A second Acquire for the
// same key waits until the first Release; different keys run independently.
type sessionQueue struct {
	mu       sync.Mutex
	sessions map[string]*sessionSlot
	wg       sync.WaitGroup
}

type sessionSlot struct {
	sem     *semaphore.Weighted
	waiters int
}

// Acquire blocks until key is free or ctx is done.
func (q *sessionQueue) Acquire(ctx context.Context, key string) error {
	q.mu.Lock()
	if q.sessions == nil {
		q.sessions = make(map[string]*sessionSlot)
	}
	slot, ok := q.sessions[key]
	if !ok {
		slot = &sessionSlot{sem: semaphore.NewWeighted(1)}
		q.sessions[key] = slot
	}
	slot.waiters++
	q.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		q.release(key, slot)
		return err
	}
	q.wg.Add(1)
	return nil
}

// TryAcquire takes key without waiting. It returns false when key is busy.
func (q *sessionQueue) TryAcquire(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sessions == nil {
		q.sessions = make(map[string]*sessionSlot)
	}
	slot, ok := q.sessions[key]
	if !ok {
		slot = &sessionSlot{sem: semaphore.NewWeighted(1)}
		q.sessions[key] = slot
	}
	if !slot.sem.TryAcquire(1) {
		return false
	}
	slot.waiters++
	q.wg.Add(1)
	return true
}

// Release frees key. Must be called once after a successful Acquire.
func (q *sessionQueue) Release(key string) {
	q.mu.Lock()
	slot := q.sessions[key]
	q.mu.Unlock()
	if slot == nil {
		return
	}
	slot.sem.Release(1)
	q.release(key, slot)
	q.wg.Done()
}

// release drops the slot once nobody holds or waits for it.
func (q *sessionQueue) release(key string, slot *sessionSlot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	slot.waiters--
	if slot.waiters == 0 && q.sessions[key] == slot {
		delete(q.sessions, key)
	}
}

// Busy reports how many sessions are held or waited for.
func (q *sessionQueue) Busy() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sessions)
}

// WaitIdle blocks until every acquired session is released or ctx is done.
func (q *sessionQueue) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
