package meter

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// #region meter

// Meter estimates per-evaluation CPU energy from instantaneous load, giving
// the software baseline the accelerator's draw is compared against. Readings
// are advisory: a failed load sample degrades to zero instead of failing the
// evaluation it wraps.
type Meter struct {
	config Config
	loadFn func() float64
}

// New creates a Meter sampling live CPU load via gopsutil.
func New(config Config) *Meter {
	return &Meter{config: config, loadFn: systemLoad}
}

// NewWithLoad creates a Meter with an injected load source (tests).
func NewWithLoad(config Config, loadFn func() float64) *Meter {
	return &Meter{config: config, loadFn: loadFn}
}

// Config returns the energy-model constants.
func (m *Meter) Config() Config {
	return m.config
}

// systemLoad returns instantaneous total CPU utilization in percent, zero on
// sampling error.
func systemLoad() float64 {
	usage, err := cpu.Percent(0, false)
	if err != nil || len(usage) == 0 {
		return 0
	}
	return usage[0]
}

// #endregion meter

// #region measure

// Measure runs fn and returns its energy sample. The error is fn's own;
// a sample is returned either way so partial runs still report energy.
func (m *Meter) Measure(bits int, fn func() error) (Sample, error) {
	start := time.Now()
	err := fn()
	dur := time.Since(start)

	load := m.loadFn()
	cpuWatts := (load / 100.0) * m.config.TDPWatts
	joules := cpuWatts * dur.Seconds()

	s := Sample{
		CPUWatts: cpuWatts,
		Joules:   joules,
		Bits:     bits,
		Duration: dur,
	}
	if bits > 0 {
		s.NJPerBit = (joules / float64(bits)) * 1e9
	}
	return s, err
}

// #endregion measure

// #region summarize

// Summarize aggregates a run's samples into the rig's final energy block.
func (m *Meter) Summarize(samples []Sample) Summary {
	out := Summary{
		Samples:   len(samples),
		FPGAWatts: m.config.FPGANominalMW / 1000.0,
	}
	if m.config.LinkBitsPerSec > 0 {
		out.FPGANJPerBit = out.FPGAWatts * (1.0 / m.config.LinkBitsPerSec) * 1e9
	}
	if len(samples) == 0 {
		return out
	}

	var sumWatts, sumNJ float64
	for _, s := range samples {
		out.TotalBits += s.Bits
		sumWatts += s.CPUWatts
		sumNJ += s.NJPerBit
	}
	out.MeanCPUWatts = sumWatts / float64(len(samples))
	out.MeanNJPerBit = sumNJ / float64(len(samples))

	if out.MeanCPUWatts > 0 {
		out.ThermalAdvantage = (out.MeanCPUWatts - out.FPGAWatts) / out.MeanCPUWatts * 100.0
	}
	if out.FPGAWatts > 0 {
		out.EfficiencyRatio = out.MeanCPUWatts / out.FPGAWatts
	}
	return out
}

// #endregion summarize
