package application

import (
	"context"
	"sync"
	"time"

	"buddy/internal/domain"
)

// FrameQueue hands frames from the capture producer to the turn loop.
// Push never blocks. With a positive capacity the oldest frame is dropped
// when the queue is full.
type FrameQueue struct {
	mu       sync.Mutex
	frames   []domain.Frame
	capacity int
	dropped  int64
	ready    chan struct{}
}

func NewFrameQueue(capacity int) *FrameQueue {
	return &FrameQueue{
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

func (q *FrameQueue) Push(frame domain.Frame) {
	q.mu.Lock()
	if q.capacity > 0 && len(q.frames) >= q.capacity {
		q.frames[0] = domain.Frame{}
		q.frames = q.frames[1:]
		q.dropped++
	}
	q.frames = append(q.frames, frame)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pop waits up to timeout for a frame. It returns false on timeout or when
// ctx is done.
func (q *FrameQueue) Pop(ctx context.Context, timeout time.Duration) (domain.Frame, bool) {
	if frame, ok := q.tryPop(); ok {
		return frame, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.Frame{}, false
		case <-timer.C:
			return q.tryPop()
		case <-q.ready:
			if frame, ok := q.tryPop(); ok {
				return frame, true
			}
		}
	}
}

func (q *FrameQueue) tryPop() (domain.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return domain.Frame{}, false
	}
	frame := q.frames[0]
	q.frames[0] = domain.Frame{}
	q.frames = q.frames[1:]
	return frame, true
}

func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped counts frames discarded because the queue was full.
func (q *FrameQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
