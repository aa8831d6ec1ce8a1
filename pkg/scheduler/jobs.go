package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/zen-systems/switchyard/pkg/hardware"
	"github.com/zen-systems/switchyard/pkg/usage"
)

// Names of the built-in jobs.
const (
	JobHardwareRefresh = "hardware-refresh"
	JobUsageReport     = "usage-report"
)

// HardwareRefreshJob keeps the hardware cache warm so queries rarely wait
// on a collection.
func HardwareRefreshJob(p *hardware.CachedProvider) Job {
	return NewJob(JobHardwareRefresh, func(ctx context.Context) error {
		_, err := p.Refresh(ctx)
		return err
	})
}

// UsageReportJob logs per-backend usage for every backend that has been used.
func UsageReportJob(counter *usage.Counter, log zerolog.Logger) Job {
	return NewJob(JobUsageReport, func(ctx context.Context) error {
		total := counter.Totals()
		log.Info().
			Int64("calls", total.Calls).
			Int64("failures", total.Failures).
			Int64("routed", total.Routed).
			Int64("tokens", total.Tokens).
			Msg("usage report")

		for _, id := range counter.Active() {
			s, _ := counter.Get(id)
			log.Info().
				Str("backend", id).
				Int64("calls", s.Calls).
				Int64("failures", s.Failures).
				Int64("routed", s.Routed).
				Int64("tokens", s.Tokens).
				Time("last_used", s.LastUsed).
				Msg("backend usage")
		}
		return ctx.Err()
	})
}
