package service

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"verigate/internal/income/metrics"
	"verigate/internal/income/models"
	"verigate/internal/income/ports"
)

// Fetcher reads the follow-up entities a completed event announces. Upstream
// failures degrade that entity to nil; Fetch itself never fails.
type Fetcher struct {
	upstream ports.Upstream
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewFetcher(upstream ports.Upstream, logger *slog.Logger, m *metrics.Metrics) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{upstream: upstream, logger: logger, metrics: m}
}

// Fetch issues the profile and employment reads concurrently when their
// entity is present on the event.
func (f *Fetcher) Fetch(ctx context.Context, event *models.WebhookEvent) (*models.ProfileSnapshot, *models.EmploymentSnapshot) {
	var (
		profile    *models.ProfileSnapshot
		employment *models.EmploymentSnapshot
		g          errgroup.Group
	)
	identifier := event.Identifier()

	if event.HasEntity(models.EntityProfile) {
		g.Go(func() error {
			start := time.Now()
			p, err := f.upstream.FetchProfile(ctx, identifier)
			f.observe(ctx, models.EntityProfile, start, err)
			if err == nil {
				profile = p
			}
			return nil
		})
	}
	if event.HasEntity(models.EntityEmployment) {
		g.Go(func() error {
			start := time.Now()
			e, err := f.upstream.FetchEmployment(ctx, identifier)
			f.observe(ctx, models.EntityEmployment, start, err)
			if err == nil {
				employment = e
			}
			return nil
		})
	}
	_ = g.Wait()
	return profile, employment
}

func (f *Fetcher) observe(ctx context.Context, entity models.Entity, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		f.logger.WarnContext(ctx, "upstream fetch failed; continuing without entity",
			"entity", entity,
			"error", err,
		)
	}
	if f.metrics != nil {
		f.metrics.ObserveFetch(string(entity), result, time.Since(start))
	}
}
