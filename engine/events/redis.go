package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

// RedisBus fans events out through a Redis Pub/Sub channel so multiple
// siteforge processes can share one event stream. It satisfies the same
// Bus interface as the in-process implementation; local subscribers still
// get drop-oldest backpressure semantics.
type RedisBus struct {
	client    *redis.Client
	channel   string
	mu        sync.RWMutex
	subs      map[int64]*subscriber
	nextID    int64
	published atomic.Uint64
	dropped   atomic.Uint64

	cancel context.CancelFunc
}

// NewRedisBus starts listening on channel and returns a Bus backed by it.
// The caller owns the redis.Client lifecycle.
func NewRedisBus(ctx context.Context, client *redis.Client, channel string) *RedisBus {
	rctx, cancel := context.WithCancel(ctx)
	b := &RedisBus{client: client, channel: channel, subs: make(map[int64]*subscriber), cancel: cancel}
	go b.listen(rctx)
	return b
}

func (b *RedisBus) listen(ctx context.Context) {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			b.fanOut(ev)
		}
	}
}

func (b *RedisBus) fanOut(ev Event) {
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()
	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- ev:
			default:
			}
			s.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
}

func (b *RedisBus) Publish(ev Event) error {
	return b.PublishCtx(context.Background(), ev)
}

func (b *RedisBus) PublishCtx(ctx context.Context, ev Event) error {
	if ev.Category == "" {
		return errMissingCategory
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	b.published.Add(1)
	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *RedisBus) Subscribe(buffer int) (Subscription, error) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	id := atomic.AddInt64(&b.nextID, 1)
	sub := &subscriber{id: id, ch: ch, idLabel: formatSubscriberID(id)}
	sub.bus = nil
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return &redisSubscription{sub: sub, bus: b}, nil
}

func (b *RedisBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	id := sub.ID()
	b.mu.Lock()
	s := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if s != nil {
		close(s.ch)
	}
	return nil
}

func (b *RedisBus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stats := Stats{Subscribers: int64(len(b.subs)), Published: b.published.Load(), Dropped: b.dropped.Load(), PerSubscriberDrops: make(map[int64]uint64)}
	for id, s := range b.subs {
		stats.PerSubscriberDrops[id] = s.dropped.Load()
	}
	return stats
}

// Close stops the background subscription goroutine.
func (b *RedisBus) Close() { b.cancel() }

type redisSubscription struct {
	sub *subscriber
	bus *RedisBus
}

func (s *redisSubscription) C() <-chan Event { return s.sub.ch }
func (s *redisSubscription) ID() int64       { return s.sub.id }
func (s *redisSubscription) Close() error    { return s.bus.Unsubscribe(s) }

var errMissingCategory = errors.New("event missing category")
