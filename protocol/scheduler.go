package protocol

import (
	"context"
	"sync"
)

const msgChanSize = 512

// Dispatcher routes received messages toward the handling loop.
type Dispatcher interface {
	// Dispatch routes an incoming message.
	Dispatch(ctx context.Context, msg Msg) error

	// HandleFrame flushes the messages deferred to the next frame.
	HandleFrame()
}

// Consumer exposes the dispatched messages to the handling loop.
type Consumer interface {
	Messages() <-chan Msg
}

// Scheduler dispatches most messages immediately and defers high-frequency
// volume updates to the frame flush, keeping the per-frame update cost
// bounded regardless of client send rate.
type Scheduler struct {
	msgChan chan Msg

	mutex    sync.Mutex
	deferred []Msg

	closeOnce sync.Once
	closed    chan struct{}
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		msgChan: make(chan Msg, msgChanSize),
		closed:  make(chan struct{}),
	}
}

func (s *Scheduler) Dispatch(ctx context.Context, msg Msg) error {
	switch msg.Type {
	case MsgTypeVolumeUpdate, MsgTypeVolumeUpdateBatch:
		s.mutex.Lock()
		s.deferred = append(s.deferred, msg)
		s.mutex.Unlock()
		return nil
	}

	select {
	case s.msgChan <- msg:
		return nil
	case <-s.closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) HandleFrame() {
	s.mutex.Lock()
	deferred := s.deferred
	s.deferred = nil
	s.mutex.Unlock()

	for i, msg := range deferred {
		select {
		case s.msgChan <- msg:
		case <-s.closed:
			return
		default:
			// The handling loop is saturated. Keep the remaining updates for
			// the next frame instead of dropping them.
			s.mutex.Lock()
			s.deferred = append(deferred[i:], s.deferred...)
			s.mutex.Unlock()
			return
		}
	}
}

func (s *Scheduler) Messages() <-chan Msg {
	return s.msgChan
}

func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
}
