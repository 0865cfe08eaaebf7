// Package redisbus fans invalidations out across replicas over Redis
// pub/sub. Each process runs its own requery cache; when one replica
// invalidates a key, the others mark their copy stale too.
//
// Wiring (bus first, then cache, then listen):
//
//	bus, _ := redisbus.New(redisbus.Config{Client: rdb, Channel: "requery:movies"})
//	cache, _ := requery.New[[]Movie](requery.Options[[]Movie]{
//	    OnInvalidate: func(canon string) { _ = bus.Publish(ctx, canon) },
//	})
//	_ = bus.Listen(ctx, cache)
//	defer bus.Close(ctx)
//
// Remote invalidations are applied via InvalidateCanonical, which does not
// re-announce, so replicas never echo messages back onto the channel.
package redisbus

import (
	"context"
	"errors"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

var (
	ErrNilClient = errors.New("redisbus: nil client")
	ErrNoChannel = errors.New("redisbus: empty channel")
)

// Invalidator is the cache-side surface the bus drives. requery.Cache[V]
// satisfies it.
type Invalidator interface {
	InvalidateCanonical(canon string)
}

type Config struct {
	Client  goredis.UniversalClient
	Channel string

	// CloseClient releases the Redis client on Close. Set true only if
	// the bus exclusively owns the client.
	CloseClient bool
}

type Bus struct {
	rdb         goredis.UniversalClient
	channel     string
	closeClient bool

	mu sync.Mutex
	ps *goredis.PubSub
	wg sync.WaitGroup
}

func New(cfg Config) (*Bus, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	if cfg.Channel == "" {
		return nil, ErrNoChannel
	}
	return &Bus{rdb: cfg.Client, channel: cfg.Channel, closeClient: cfg.CloseClient}, nil
}

// Publish announces a canonical key to all listening replicas, including
// this one; local delivery is harmless because invalidating twice is
// idempotent.
func (b *Bus) Publish(ctx context.Context, canon string) error {
	return b.rdb.Publish(ctx, b.channel, canon).Err()
}

// Listen subscribes to the channel and applies incoming invalidations to
// inv. It returns once the subscription is confirmed; delivery continues on
// a background goroutine until Close. Calling Listen twice is an error.
func (b *Bus) Listen(ctx context.Context, inv Invalidator) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ps != nil {
		return errors.New("redisbus: already listening")
	}

	ps := b.rdb.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return err
	}
	b.ps = ps

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range ps.Channel() {
			inv.InvalidateCanonical(msg.Payload)
		}
	}()
	return nil
}

// Close stops delivery and releases the subscription (and the client, when
// owned). Safe to call multiple times.
func (b *Bus) Close(ctx context.Context) error {
	b.mu.Lock()
	ps := b.ps
	b.ps = nil
	b.mu.Unlock()

	if ps != nil {
		if err := ps.Close(); err != nil {
			return err
		}
		b.wg.Wait()
	}
	if b.closeClient {
		if err := b.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}
