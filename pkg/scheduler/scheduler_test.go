package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/switchyard/pkg/config"
	"github.com/zen-systems/switchyard/pkg/hardware"
	"github.com/zen-systems/switchyard/pkg/usage"
)

func TestScheduleValidation(t *testing.T) {
	s := New(zerolog.Nop())
	s.Register(NewJob("noop", func(context.Context) error { return nil }))

	assert.NoError(t, s.Schedule("noop", "@every 1m"))
	assert.NoError(t, s.Schedule("noop", "*/5 * * * *"))
	assert.Error(t, s.Schedule("noop", "not a schedule"))
	assert.Error(t, s.Schedule("missing", "@every 1m"))

	assert.Equal(t, "*/5 * * * *", s.States()["noop"].Schedule)
	assert.False(t, s.States()["noop"].NextRunAt.IsZero())
}

func TestConfigure(t *testing.T) {
	s := New(zerolog.Nop())
	s.Register(NewJob(JobUsageReport, func(context.Context) error { return nil }))
	s.Register(NewJob(JobHardwareRefresh, func(context.Context) error { return nil }))

	disabled := false
	err := s.Configure([]config.JobConfig{
		{Name: JobUsageReport, Schedule: "@every 15m"},
		{Name: JobHardwareRefresh, Schedule: "@every 1m", Enabled: &disabled},
		{Name: "issue-sync", Schedule: "@hourly"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue-sync")

	states := s.States()
	assert.Equal(t, "@every 15m", states[JobUsageReport].Schedule)
	assert.Empty(t, states[JobHardwareRefresh].Schedule)
	assert.Equal(t, []string{JobHardwareRefresh, JobUsageReport}, s.Names())
}

func TestRunNowTracksState(t *testing.T) {
	s := New(zerolog.Nop())
	fail := true
	s.Register(NewJob("flaky", func(context.Context) error {
		if fail {
			return errors.New("upstream down")
		}
		return nil
	}))

	assert.Error(t, s.RunNow(context.Background(), "flaky"))
	st := s.States()["flaky"]
	assert.Equal(t, int64(1), st.RunCount)
	assert.Equal(t, int64(1), st.ErrorCount)
	assert.Equal(t, "upstream down", st.LastError)

	fail = false
	assert.NoError(t, s.RunNow(context.Background(), "flaky"))
	st = s.States()["flaky"]
	assert.Equal(t, int64(2), st.RunCount)
	assert.Empty(t, st.LastError)

	assert.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestRunNowAppliesTimeout(t *testing.T) {
	s := New(zerolog.Nop(), WithTimeout(10*time.Millisecond))
	s.Register(NewJob("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	assert.ErrorIs(t, s.RunNow(context.Background(), "slow"), context.DeadlineExceeded)
}

func TestStartRunsScheduledJobs(t *testing.T) {
	s := New(zerolog.Nop())
	var runs atomic.Int32
	s.Register(NewJob("tick", func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.Schedule("tick", "@every 1s"))

	s.Start()
	assert.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestBuiltinJobs(t *testing.T) {
	provider := hardware.NewCachedProvider(hardware.StaticProvider{Value: hardware.Status{CPUPercent: 12, Online: true}}, time.Hour, zerolog.Nop())
	refresh := HardwareRefreshJob(provider)
	assert.Equal(t, JobHardwareRefresh, refresh.Name())
	require.NoError(t, refresh.Run(context.Background()))
	_, ok := provider.Age()
	assert.True(t, ok, "refresh should populate the cache")

	counter := usage.NewCounter([]string{"main-brain", "idle"})
	counter.RecordCall("main-brain", 40, true)

	var buf bytes.Buffer
	report := UsageReportJob(counter, zerolog.New(&buf))
	require.NoError(t, report.Run(context.Background()))
	out := buf.String()
	assert.Contains(t, out, `"backend":"main-brain"`)
	assert.Contains(t, out, `"tokens":40`)
	assert.NotContains(t, out, `"backend":"idle"`)
}
