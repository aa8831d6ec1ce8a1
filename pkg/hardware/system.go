package hardware

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/errgroup"
)

// RuntimeProbe reports whether the local model runtime answers.
type RuntimeProbe func(ctx context.Context) error

// SystemProvider reads the host with gopsutil and probes connectivity.
type SystemProvider struct {
	ProbeAddress string
	ProbeTimeout time.Duration
	DiskPath     string
	CPUSample    time.Duration
	Runtime      RuntimeProbe

	now  func() time.Time
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewSystemProvider creates a provider. runtime may be nil when no local
// runtime is configured.
func NewSystemProvider(probeAddress string, probeTimeout time.Duration, diskPath string, runtime RuntimeProbe) *SystemProvider {
	if probeTimeout <= 0 {
		probeTimeout = 1500 * time.Millisecond
	}
	if diskPath == "" {
		diskPath = "/"
	}
	d := &net.Dialer{Timeout: probeTimeout}
	return &SystemProvider{
		ProbeAddress: probeAddress,
		ProbeTimeout: probeTimeout,
		DiskPath:     diskPath,
		CPUSample:    200 * time.Millisecond,
		Runtime:      runtime,
		now:          time.Now,
		dial:         d.DialContext,
	}
}

// ErrPartialReading marks a Status where some stats could not be read. The
// returned Status is still usable: unread stats keep their DefaultStatus
// values and connectivity is always probed.
var ErrPartialReading = errors.New("partial hardware reading")

// Status collects every reading in parallel. Connectivity and runtime probe
// failures are reported as flags. Stat failures are joined under
// ErrPartialReading alongside the rest of the reading.
func (p *SystemProvider) Status(ctx context.Context) (Status, error) {
	s := DefaultStatus()
	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		pct, err := cpu.PercentWithContext(ctx, p.CPUSample, false)
		if err != nil {
			fail(fmt.Errorf("cpu: %w", err))
			return nil
		}
		if len(pct) > 0 {
			s.CPUPercent = pct[0]
		}
		return nil
	})
	g.Go(func() error {
		vm, err := mem.VirtualMemoryWithContext(ctx)
		if err != nil {
			fail(fmt.Errorf("memory: %w", err))
			return nil
		}
		if vm.Total > 0 {
			s.MemoryFreePercent = float64(vm.Available) / float64(vm.Total) * 100
		}
		return nil
	})
	g.Go(func() error {
		du, err := disk.UsageWithContext(ctx, p.DiskPath)
		if err != nil {
			fail(fmt.Errorf("disk %s: %w", p.DiskPath, err))
			return nil
		}
		s.DiskPercent = du.UsedPercent
		return nil
	})
	g.Go(func() error {
		s.Online = p.online(ctx)
		return nil
	})
	g.Go(func() error {
		s.LocalRuntimeReachable = p.runtimeReachable(ctx)
		return nil
	})

	_ = g.Wait()
	s.CollectedAt = p.now()
	if len(errs) > 0 {
		return s, fmt.Errorf("%w: %w", ErrPartialReading, errors.Join(errs...))
	}
	return s, nil
}

func (p *SystemProvider) online(ctx context.Context) bool {
	if p.ProbeAddress == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, p.ProbeTimeout)
	defer cancel()

	conn, err := p.dial(ctx, "tcp", p.ProbeAddress)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (p *SystemProvider) runtimeReachable(ctx context.Context) bool {
	if p.Runtime == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, p.ProbeTimeout)
	defer cancel()
	return p.Runtime(ctx) == nil
}
