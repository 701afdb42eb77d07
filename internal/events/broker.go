package events

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	TypeLike     = "like"
	TypeUnlike   = "unlike"
	TypeFollow   = "follow"
	TypeUnfollow = "unfollow"
)

// Event is one committed engagement change.
type Event struct {
	Type         string `json:"type"`
	ActorID      int64  `json:"actorId"`
	VideoID      int64  `json:"videoId,omitempty"`
	TargetUserID int64  `json:"targetUserId,omitempty"`
	Count        int64  `json:"count"`
	Timestamp    int64  `json:"timestamp"`
}

func NewEvent(typ string, actorID int64) Event {
	return Event{Type: typ, ActorID: actorID, Timestamp: time.Now().Unix()}
}

// Broker fans events out to every subscriber. Publish never blocks the caller.
type Broker struct {
	in chan Event

	mu   sync.RWMutex
	subs []chan Event
	done bool
}

func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 100
	}
	return &Broker{in: make(chan Event, buffer)}
}

// Publish queues e and reports false when the buffer is full and the event was dropped.
func (b *Broker) Publish(e Event) bool {
	select {
	case b.in <- e:
		return true
	default:
		log.Printf("events: buffer full, dropping %s event from user %d", e.Type, e.ActorID)
		return false
	}
}

// Subscribe must be called before Run starts delivering; the channel is closed when Run returns.
func (b *Broker) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Broker) Run(ctx context.Context) {
	defer b.closeSubs()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.in:
			b.mu.RLock()
			for _, ch := range b.subs {
				select {
				case ch <- e:
				default:
					// subscriber chậm thì bỏ event, không chặn các subscriber khác
				}
			}
			b.mu.RUnlock()
		}
	}
}

func (b *Broker) closeSubs() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
