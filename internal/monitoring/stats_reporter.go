package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/chat-auth-be/internal/metrics"
	"github.com/isdelr/chat-auth-be/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// StatsSource reports account counts.
type StatsSource interface {
	Stats(ctx context.Context) (models.AccountStats, error)
}

// StatsReporter periodically logs account counts and publishes them as
// Prometheus gauges.
type StatsReporter struct {
	source  StatsSource
	cron    *cron.Cron
	timeout time.Duration
}

// NewStatsReporter creates a reporter running on the given cron schedule
// (standard five-field syntax or descriptors such as "@every 5m").
func NewStatsReporter(source StatsSource, schedule string) (*StatsReporter, error) {
	r := &StatsReporter{
		source:  source,
		cron:    cron.New(),
		timeout: 10 * time.Second,
	}
	if _, err := r.cron.AddFunc(schedule, r.Report); err != nil {
		return nil, fmt.Errorf("invalid stats schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start reports once immediately, then on every scheduled tick.
func (r *StatsReporter) Start() {
	log.Info().Msg("Starting account stats reporter...")
	go r.Report()
	r.cron.Start()
}

// Stop halts the schedule and waits for a running report to finish.
func (r *StatsReporter) Stop() {
	<-r.cron.Stop().Done()
	log.Info().Msg("Stopped account stats reporter.")
}

// Report queries the current counts once.
func (r *StatsReporter) Report() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	stats, err := r.source.Stats(ctx)
	if err != nil {
		log.Error().Err(err).Msg("StatsReporter: Failed to query account stats")
		return
	}

	metrics.SetAccountStats(stats)
	log.Info().
		Int64("total", stats.Total).
		Int64("verified", stats.Verified).
		Int64("unverified", stats.Unverified).
		Msg("Account stats")
}
