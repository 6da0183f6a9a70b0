package messaging

import (
	"sync"

	domain "github.com/reussite-hub/reussite-tutoring-hub/internal/domain/messaging"
	"github.com/reussite-hub/reussite-tutoring-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIVE CHANNEL FEED (PROCESS-LOCAL)
// ══════════════════════════════════════════════════════════════════════════════

// LiveFeed implements the live chat delivery port with a process-local
// listener registry: subscribers receive every message appended to their
// channel after the moment they subscribed. For multi-process deployments
// the Redis feed replaces this; semantics are the same.
type LiveFeed struct {
	mu        sync.RWMutex
	listeners map[shared.EncadrementID]map[int]domain.DeliveryFunc
	nextID    int
}

// NewLiveFeed creates a new LiveFeed.
func NewLiveFeed() *LiveFeed {
	return &LiveFeed{
		listeners: make(map[shared.EncadrementID]map[int]domain.DeliveryFunc),
	}
}

// Subscribe implements messaging.Feed.
func (f *LiveFeed) Subscribe(encadrementID shared.EncadrementID, fn domain.DeliveryFunc) (domain.Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	channel, ok := f.listeners[encadrementID]
	if !ok {
		channel = make(map[int]domain.DeliveryFunc)
		f.listeners[encadrementID] = channel
	}

	id := f.nextID
	f.nextID++
	channel[id] = fn

	return &liveSubscription{feed: f, channel: encadrementID, id: id}, nil
}

// Publish delivers a message to every current subscriber of its channel.
// Callbacks run inline on the publisher's goroutine. Each subscriber sees
// messages in publish order; the order across subscribers is unspecified.
func (f *LiveFeed) Publish(m *domain.Message) {
	f.mu.RLock()
	channel := f.listeners[m.EncadrementID]
	fns := make([]domain.DeliveryFunc, 0, len(channel))
	for _, fn := range channel {
		fns = append(fns, fn)
	}
	f.mu.RUnlock()

	for _, fn := range fns {
		fn(m)
	}
}

// ListenerCount reports the number of active subscriptions on a channel.
func (f *LiveFeed) ListenerCount(encadrementID shared.EncadrementID) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners[encadrementID])
}

type liveSubscription struct {
	feed    *LiveFeed
	channel shared.EncadrementID
	id      int
	once    sync.Once
}

// Cancel removes the listener registration. Idempotent; an empty channel
// entry is dropped so the registry cannot accumulate dead channels.
func (s *liveSubscription) Cancel() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()

		channel := s.feed.listeners[s.channel]
		delete(channel, s.id)
		if len(channel) == 0 {
			delete(s.feed.listeners, s.channel)
		}
	})
}
