package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/vslobodin/channel-mirror-bot/internal/storage"
)

const backlogReportLimit = 50

// Service handles scheduled maintenance tasks
type Service struct {
	store storage.Store
	cron  *cron.Cron
}

// NewService creates a new scheduler service
func NewService(store storage.Store) *Service {
	return &Service{
		store: store,
		cron:  cron.New(cron.WithSeconds()),
	}
}

// Start begins the scheduled tasks
func (s *Service) Start() error {
	// Report the unpublished backlog daily at 9 AM UTC
	_, err := s.cron.AddFunc("0 0 9 * * *", func() {
		if err := s.ReportBacklog(); err != nil {
			logrus.Errorf("Backlog report failed: %v", err)
		}
	})

	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Info("Scheduler started with daily backlog report")
	return nil
}

// ReportBacklog logs discovered posts that never reached the destination,
// with their recorded failure reasons.
func (s *Service) ReportBacklog() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	records, err := s.store.GetUnpublished(ctx, backlogReportLimit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		logrus.Info("Backlog report: every discovered post was published")
		return nil
	}

	logrus.Warnf("Backlog report: %d discovered posts were not published", len(records))
	for _, record := range records {
		entry := logrus.WithFields(logrus.Fields{
			"platform": record.Platform,
			"source":   record.SourceID,
			"post":     record.PostID,
			"url":      record.URL,
		})
		if record.ErrorMessage != "" {
			entry.Warnf("publish failed: %s", record.ErrorMessage)
		} else {
			entry.Warn("discovered but never published")
		}
	}

	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
