package live

import (
	"context"
	"sync"

	"lostfound/pkg/logger"
)

// Watch subscribes to topic, calls refresh once synchronously and then again
// after every notification until the returned stop func is called or ctx is
// done. A failing first refresh is returned and nothing stays subscribed;
// later failures are logged and the previous state is kept.
//
// stop blocks until the delivery goroutine has exited, so it must not be
// called from inside refresh.
func Watch(ctx context.Context, bus Bus, topic string, refresh func(context.Context) error) (stop func(), err error) {
	events, release := bus.Subscribe(topic)

	// subscribe first, then load, so a write between the two is not lost
	if err := refresh(ctx); err != nil {
		release()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				if err := refresh(ctx); err != nil && ctx.Err() == nil {
					logger.Log(ctx).Errorf("live: refresh of %s failed: %v", topic, err)
				}
			}
		}
	}()

	var once sync.Once
	stop = func() {
		once.Do(func() {
			cancel()
			release()
			<-done
		})
	}
	return stop, nil
}
