package sources

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vslobodin/channel-mirror-bot/internal/models"
	"github.com/vslobodin/channel-mirror-bot/internal/ratelimit"
)

// Adapter pairs a Source with its own adaptive rate limiter and drives one
// fetch attempt per cycle. Backoff state is per adapter, so one failing
// source never throttles the others.
type Adapter struct {
	source  Source
	limiter *ratelimit.Adaptive

	initMu      sync.Mutex
	initialized bool
}

// NewAdapter wraps a source with its limiter.
func NewAdapter(source Source, limiter *ratelimit.Adaptive) *Adapter {
	return &Adapter{source: source, limiter: limiter}
}

// Name returns the source's platform name.
func (a *Adapter) Name() string { return a.source.Name() }

// URL returns the source's configured URL.
func (a *Adapter) URL() string { return a.source.URL() }

// Scrape performs one rate-limited fetch. A transient error contributes zero
// posts after the backoff delay; once the consecutive-error ceiling is
// exceeded the error escalates to the caller. A successful fetch resets the
// error streak.
func (a *Adapter) Scrape(ctx context.Context, limit int, since time.Time) ([]models.Post, error) {
	posts, err := a.fetch(ctx, limit, since)
	if err != nil {
		logrus.Errorf("scrape of %s failed: %v", a.source.URL(), err)
		return nil, a.limiter.HandleError(ctx, err)
	}

	a.limiter.ResetErrors()
	return posts, nil
}

func (a *Adapter) fetch(ctx context.Context, limit int, since time.Time) ([]models.Post, error) {
	a.initMu.Lock()
	if !a.initialized {
		if err := a.source.Initialize(ctx); err != nil {
			a.initMu.Unlock()
			return nil, err
		}
		a.initialized = true
	}
	a.initMu.Unlock()

	if err := a.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	return a.source.Fetch(ctx, limit, since)
}

// Close releases the underlying source.
func (a *Adapter) Close() error { return a.source.Close() }
