package live

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"

	"lostfound/pkg/logger"
)

const (
	redisNS       = "lostfound:"
	maxRetryDelay = 30 * time.Second
)

// RedisBus publishes through Redis Pub/Sub so that every instance of the
// service observes writes made by the others. Local delivery goes through an
// embedded MemoryBus fed by Run.
type RedisBus struct {
	pool       *redis.Pool
	local      *MemoryBus
	retryDelay time.Duration
}

func NewRedisBus(pool *redis.Pool) *RedisBus {
	return &RedisBus{
		pool:       pool,
		local:      NewMemoryBus(),
		retryDelay: 500 * time.Millisecond,
	}
}

func (b *RedisBus) Publish(ctx context.Context, topic string) error {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("live/redis: can't get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("PUBLISH", redisNS+topic, "1"); err != nil {
		return fmt.Errorf("live/redis: PUBLISH %s failed: %w", topic, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(topic string) (<-chan struct{}, func()) {
	return b.local.Subscribe(topic)
}

// Run listens on every lostfound channel until ctx is done and returns nil
// then. A lost subscription is re-established with backoff; once it is back
// every local subscriber is notified, since changes made meanwhile were not
// seen.
func (b *RedisBus) Run(ctx context.Context) error {
	delay := b.retryDelay
	for attempt := 0; ; attempt++ {
		subscribed, err := b.listen(ctx, attempt > 0)
		if ctx.Err() != nil {
			return nil
		}
		if subscribed {
			delay = b.retryDelay
		}
		logger.Log(ctx).Warnf("live/redis: subscription lost, retrying in %s: %v", delay, err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// listen runs one subscription until it fails or ctx is done. subscribed
// reports whether Redis confirmed the subscription.
func (b *RedisBus) listen(ctx context.Context, resync bool) (subscribed bool, err error) {
	conn, err := b.pool.GetContext(ctx)
	if err != nil {
		return false, fmt.Errorf("live/redis: can't get connection: %w", err)
	}
	psc := redis.PubSubConn{Conn: conn}
	if err := psc.PSubscribe(redisNS + "*"); err != nil {
		conn.Close()
		return false, fmt.Errorf("live/redis: PSUBSCRIBE failed: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		// unblocks Receive
		psc.Close()
	}()

	for {
		switch v := psc.Receive().(type) {
		case redis.Message:
			topic := strings.TrimPrefix(v.Channel, redisNS)
			_ = b.local.Publish(ctx, topic)
		case redis.Subscription:
			logger.Log(ctx).Debugf("live/redis: %s %s (%d)", v.Kind, v.Channel, v.Count)
			if v.Kind == "psubscribe" && !subscribed {
				subscribed = true
				if resync {
					_ = b.local.PublishAll(ctx)
				}
			}
		case error:
			if ctx.Err() != nil {
				return subscribed, nil
			}
			if errors.Is(v, redis.ErrNil) {
				continue
			}
			return subscribed, fmt.Errorf("live/redis: receive failed: %w", v)
		}
	}
}
