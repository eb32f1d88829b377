// Package poller periodically segments the recent history of configured subjects.
package poller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/tripwatch/internal/models"
	"github.com/jengzang/tripwatch/internal/segmentation"
	"github.com/jengzang/tripwatch/internal/service"
)

// SubjectResolver maps display names to subject ids
type SubjectResolver interface {
	SubjectByName(ctx context.Context, name string) (string, error)
}

// SubjectRunner runs one segmentation window for a subject
type SubjectRunner interface {
	RunSubject(ctx context.Context, subject service.Subject, from, to time.Time) (*models.SegmentationRun, []segmentation.Trip, error)
}

// Config holds poller settings
type Config struct {
	Interval time.Duration
	Lookback time.Duration
	Names    []string
}

// Poller runs segmentation for every configured subject on a fixed interval
type Poller struct {
	runner   SubjectRunner
	resolver SubjectResolver
	cfg      Config
	logger   *logrus.Entry
	now      func() time.Time

	// resolved keeps ids of names already looked up; names are resolved once
	resolved map[string]string
}

// New creates a new poller
func New(runner SubjectRunner, resolver SubjectResolver, cfg Config, logger *logrus.Logger) *Poller {
	return &Poller{
		runner:   runner,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger.WithField("component", "poller"),
		now:      time.Now,
		resolved: make(map[string]string),
	}
}

// Run polls immediately and then on every tick until ctx is cancelled
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.logger.Infof("Poller started, interval: %v, lookback: %v, subjects: %v", p.cfg.Interval, p.cfg.Lookback, p.cfg.Names)
	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopping...")
			return ctx.Err()
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce segments [now-Lookback, now] for every resolvable subject and
// returns the number of trips found. Failures are logged and do not stop
// the other subjects.
func (p *Poller) PollOnce(ctx context.Context) int {
	to := p.now()
	from := to.Add(-p.cfg.Lookback)

	total := 0
	for _, subject := range p.subjects(ctx) {
		if ctx.Err() != nil {
			break
		}

		log := p.logger.WithField("subject", subject.ID)
		_, trips, err := p.runner.RunSubject(ctx, subject, from, to)
		if err != nil {
			log.WithError(err).Error("Segmentation run failed")
			continue
		}
		total += len(trips)
	}
	return total
}

func (p *Poller) subjects(ctx context.Context) []service.Subject {
	subjects := make([]service.Subject, 0, len(p.cfg.Names))
	for _, name := range p.cfg.Names {
		id, ok := p.resolved[name]
		if !ok {
			var err error
			id, err = p.resolver.SubjectByName(ctx, name)
			if err != nil {
				p.logger.WithError(err).WithField("name", name).Warn("Failed to resolve subject")
				continue
			}
			p.resolved[name] = id
		}
		subjects = append(subjects, service.Subject{ID: id, Name: name})
	}
	return subjects
}
