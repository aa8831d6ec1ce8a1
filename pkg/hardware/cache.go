package hardware

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// CachedProvider serves a Status until it is older than the TTL. Concurrent
// callers of a stale cache share one refresh. A failed refresh keeps the last
// good status and is not retried until the TTL passes again. Partial
// readings are kept.
type CachedProvider struct {
	inner   Provider
	ttl     time.Duration
	timeout time.Duration
	log     zerolog.Logger
	now     func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	last    Status
	fetched time.Time // last successful refresh
	checked time.Time // last refresh attempt
	have    bool
	err     error
}

// NewCachedProvider wraps inner with a TTL cache.
func NewCachedProvider(inner Provider, ttl time.Duration, log zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProvider{
		inner:   inner,
		ttl:     ttl,
		timeout: 5 * time.Second,
		log:     log,
		now:     time.Now,
	}
}

// Status returns the cached status, refreshing it first when stale. The
// error is non-nil only when no status has ever been collected, in which
// case DefaultStatus is returned.
func (c *CachedProvider) Status(ctx context.Context) (Status, error) {
	c.mu.RLock()
	if !c.checked.IsZero() && c.now().Sub(c.checked) < c.ttl {
		defer c.mu.RUnlock()
		if c.have {
			return c.last, nil
		}
		return DefaultStatus(), c.err
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

// Refresh collects a new status regardless of age.
func (c *CachedProvider) Refresh(ctx context.Context) (Status, error) {
	ch := c.group.DoChan("status", func() (any, error) {
		// other callers may be waiting on this refresh
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.inner.Status(rctx)
	})

	select {
	case <-ctx.Done():
		return c.fallback(ctx.Err())
	case res := <-ch:
		s, _ := res.Val.(Status)
		switch {
		case res.Err == nil:
		case errors.Is(res.Err, ErrPartialReading):
			c.log.Warn().Err(res.Err).Msg("hardware reading incomplete")
		default:
			c.log.Warn().Err(res.Err).Msg("hardware refresh failed")
			c.markFailed(res.Err)
			return c.fallback(res.Err)
		}
		c.store(s)
		return s, nil
	}
}

// Age is the time since the last successful refresh.
func (c *CachedProvider) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.have {
		return 0, false
	}
	return c.now().Sub(c.fetched), true
}

func (c *CachedProvider) store(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = s
	c.fetched = c.now()
	c.checked = c.fetched
	c.have = true
	c.err = nil
}

func (c *CachedProvider) markFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checked = c.now()
	c.err = err
}

func (c *CachedProvider) fallback(err error) (Status, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.have {
		return c.last, nil
	}
	return DefaultStatus(), err
}
