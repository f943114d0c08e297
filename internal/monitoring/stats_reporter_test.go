package monitoring

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/isdelr/chat-auth-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int32
	stats models.AccountStats
	err   error
}

func (s *countingSource) Stats(context.Context) (models.AccountStats, error) {
	s.calls.Add(1)
	return s.stats, s.err
}

func TestNewStatsReporter_InvalidSchedule(t *testing.T) {
	_, err := NewStatsReporter(&countingSource{}, "every now and then")
	assert.Error(t, err)
}

func TestStatsReporter_ReportsOnStartAndSchedule(t *testing.T) {
	src := &countingSource{stats: models.AccountStats{Total: 3, Verified: 2, Unverified: 1}}
	r, err := NewStatsReporter(src, "@every 1s")
	require.NoError(t, err)

	r.Start()
	assert.Eventually(t, func() bool { return src.calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
	r.Stop()
}

func TestStatsReporter_ReportToleratesErrors(t *testing.T) {
	src := &countingSource{err: errors.New("store down")}
	r, err := NewStatsReporter(src, "@hourly")
	require.NoError(t, err)

	assert.NotPanics(t, r.Report)
	assert.Equal(t, int32(1), src.calls.Load())
}
