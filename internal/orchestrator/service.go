package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vslobodin/channel-mirror-bot/internal/config"
	"github.com/vslobodin/channel-mirror-bot/internal/models"
	"github.com/vslobodin/channel-mirror-bot/internal/publisher"
	"github.com/vslobodin/channel-mirror-bot/internal/ratelimit"
	"github.com/vslobodin/channel-mirror-bot/internal/storage"
)

// State describes the service lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateShuttingDown State = "shutting_down"
	StateStopped      State = "stopped"
)

// SourceAdapter is the slice of the sources package the service drives.
type SourceAdapter interface {
	Name() string
	URL() string
	Scrape(ctx context.Context, limit int, since time.Time) ([]models.Post, error)
	Close() error
}

// Service runs the scrape-dedup-publish pipeline across all sources.
type Service struct {
	config    *config.Config
	store     storage.Store
	publisher publisher.Publisher
	adapters  []SourceAdapter

	startTime time.Time
	state     State
	metrics   *Metrics
	mu        sync.RWMutex

	// cycleMu serializes cycles so the interval loop and a manual trigger
	// never publish or transition the store concurrently.
	cycleMu sync.Mutex
}

// Metrics holds pipeline counters
type Metrics struct {
	TotalDiscovered   int            `json:"total_discovered"`
	TotalPublished    int            `json:"total_published"`
	TotalDuplicates   int            `json:"total_duplicates"`
	TotalSkipped      int            `json:"total_skipped"`
	TotalFailed       int            `json:"total_failed"`
	LastCycle         time.Time      `json:"last_cycle"`
	LastCycleDuration string         `json:"last_cycle_duration"`
	SourceMetrics     map[string]int `json:"source_metrics"`
	ErrorCount        int            `json:"error_count"`
}

// NewService creates the pipeline service. At least one adapter is required.
func NewService(cfg *config.Config, store storage.Store, pub publisher.Publisher, adapters []SourceAdapter) (*Service, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("at least one source is required")
	}

	return &Service{
		config:    cfg,
		store:     store,
		publisher: pub,
		adapters:  adapters,
		startTime: time.Now().UTC(),
		state:     StateIdle,
		metrics: &Metrics{
			SourceMetrics: make(map[string]int),
		},
	}, nil
}

// StartTime returns when the service was created. Posts created before this
// moment are recorded but never republished, whichever path runs the cycle.
func (s *Service) StartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startTime
}

// GetState returns the current lifecycle state.
func (s *Service) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	logrus.Infof("pipeline state: %s", state)
}

// Run drives the pipeline until the context is cancelled, then shuts down.
func (s *Service) Run(ctx context.Context) error {
	s.setState(StateInitializing)

	if err := s.publisher.Initialize(ctx); err != nil {
		s.setState(StateStopped)
		return fmt.Errorf("publisher initialization failed: %w", err)
	}

	s.setState(StateRunning)

	logrus.Infof("mirroring %d sources every %v", len(s.adapters), s.config.ScrapeInterval)

	for {
		if err := s.RunCycle(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			logrus.Errorf("cycle failed: %v", err)
		}

		if err := ratelimit.Wait(ctx, s.config.ScrapeInterval); err != nil {
			break
		}
	}

	s.shutdown()
	return nil
}

// RunCycle performs one full scrape-dedup-publish pass over all sources.
// Cycles are mutually exclusive: a manual trigger while the interval loop is
// mid-cycle waits for it to finish.
func (s *Service) RunCycle(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	start := time.Now()
	logrus.Debug("starting cycle")

	posts, errorCount := s.fetchAll(ctx)
	if err := ctx.Err(); err != nil {
		return err
	}

	published, duplicates, skipped, failed := 0, 0, 0, 0
	for _, post := range posts {
		outcome, err := s.process(ctx, post)
		if err != nil {
			return err
		}
		switch outcome {
		case outcomePublished:
			published++
		case outcomeDuplicate:
			duplicates++
		case outcomeSkipped:
			skipped++
		case outcomeFailed:
			failed++
		}
	}

	s.updateMetrics(posts, published, duplicates, skipped, failed, time.Since(start), errorCount)

	logrus.Infof("cycle done in %v: %d discovered, %d published, %d duplicates, %d skipped, %d failed",
		time.Since(start), len(posts), published, duplicates, skipped, failed)
	return nil
}

// fetchAll scrapes every source concurrently and merges the results in
// adapter order, so the merged feed is stable across cycles.
func (s *Service) fetchAll(ctx context.Context) ([]models.Post, int) {
	since := s.StartTime()
	results := make([][]models.Post, len(s.adapters))
	failures := make([]error, len(s.adapters))

	var wg sync.WaitGroup
	for i, adapter := range s.adapters {
		wg.Add(1)
		go func(i int, adapter SourceAdapter) {
			defer wg.Done()

			posts, err := adapter.Scrape(ctx, s.config.FetchLimit, since)
			if err != nil {
				logrus.Errorf("%s source %s gave up: %v", adapter.Name(), adapter.URL(), err)
				failures[i] = err
				return
			}
			results[i] = posts
		}(i, adapter)
	}
	wg.Wait()

	var merged []models.Post
	errorCount := 0
	for i := range s.adapters {
		if failures[i] != nil {
			errorCount++
			continue
		}
		merged = append(merged, results[i]...)
	}

	return merged, errorCount
}

type outcome int

const (
	outcomePublished outcome = iota
	outcomeDuplicate
	outcomeSkipped
	outcomeFailed
)

// process runs one post through dedup, the forward-only filter, the quiet
// period, and publication. Storage errors abort the cycle; publish errors
// mark the record failed and continue.
func (s *Service) process(ctx context.Context, post models.Post) (outcome, error) {
	seen, err := s.store.IsProcessed(ctx, post.Fingerprint)
	if err != nil {
		return outcomeFailed, fmt.Errorf("dedup check failed: %w", err)
	}
	if seen {
		return outcomeDuplicate, nil
	}

	if _, err := s.store.MarkProcessed(ctx, post); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return outcomeDuplicate, nil
		}
		return outcomeFailed, fmt.Errorf("failed to record post: %w", err)
	}

	// Forward-only: anything older than process start is recorded as seen
	// but never republished.
	if post.CreatedAt.Before(s.StartTime()) {
		logrus.Debugf("skipping pre-start post %s/%s", post.SourceID, post.PostID)
		return outcomeSkipped, nil
	}

	// Quiet period gives the author time to edit or delete before the
	// post is mirrored.
	if err := ratelimit.Wait(ctx, s.config.PostCheckDelay); err != nil {
		return outcomeSkipped, err
	}

	messageID, err := s.publisher.Publish(ctx, post)
	if err != nil {
		if ctx.Err() != nil {
			return outcomeFailed, ctx.Err()
		}
		logrus.Errorf("failed to publish %s/%s: %v", post.SourceID, post.PostID, err)
		if markErr := s.store.MarkFailed(ctx, post.Fingerprint, err.Error()); markErr != nil {
			return outcomeFailed, fmt.Errorf("failed to record publish error: %w", markErr)
		}
		return outcomeFailed, nil
	}

	if err := s.store.MarkPublished(ctx, post.Fingerprint, messageID); err != nil {
		return outcomeFailed, fmt.Errorf("failed to record publication: %w", err)
	}

	logrus.Infof("published %s/%s as message %s", post.SourceID, post.PostID, messageID)
	return outcomePublished, nil
}

func (s *Service) updateMetrics(posts []models.Post, published, duplicates, skipped, failed int, duration time.Duration, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.TotalDiscovered += len(posts)
	s.metrics.TotalPublished += published
	s.metrics.TotalDuplicates += duplicates
	s.metrics.TotalSkipped += skipped
	s.metrics.TotalFailed += failed
	s.metrics.LastCycle = time.Now()
	s.metrics.LastCycleDuration = duration.String()
	s.metrics.ErrorCount += errorCount

	for _, post := range posts {
		s.metrics.SourceMetrics[post.SourceID]++
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// shutdown releases every component, attempting all of them even when some
// fail.
func (s *Service) shutdown() {
	s.setState(StateShuttingDown)

	for _, adapter := range s.adapters {
		if err := adapter.Close(); err != nil {
			logrus.Errorf("failed to close source %s: %v", adapter.URL(), err)
		}
	}
	if err := s.publisher.Close(); err != nil {
		logrus.Errorf("failed to close publisher: %v", err)
	}
	if err := s.store.Close(); err != nil {
		logrus.Errorf("failed to close store: %v", err)
	}

	s.setState(StateStopped)
}
