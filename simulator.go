package streamchart

import (
	"context"
	"math/rand"
	"time"
)

// SpikeSourceConfig configures a random spike generator.
type SpikeSourceConfig struct {
	// SeriesNames are the series the source emits on. Required.
	SeriesNames []string
	// Interval is the time between batches. Default: 25ms.
	Interval time.Duration
	// SpikeProbability is the chance, per series per batch, that a spike
	// is emitted. Default: 0.4.
	SpikeProbability float64
	// Seed makes the generated values deterministic when non-zero.
	Seed int64
}

// SpikeSource produces random spike batches on a fixed interval, for
// demos and tests. Sample times are wall-clock milliseconds since the
// source started, so a fresh chart window beginning at zero lines up
// with the generated data.
type SpikeSource struct {
	config SpikeSourceConfig
	out    chan ChartData
	rng    *rand.Rand
}

// NewSpikeSource creates a spike source.
func NewSpikeSource(cfg SpikeSourceConfig) *SpikeSource {
	if cfg.Interval <= 0 {
		cfg.Interval = 25 * time.Millisecond
	}
	if cfg.SpikeProbability <= 0 || cfg.SpikeProbability > 1 {
		cfg.SpikeProbability = 0.4
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SpikeSource{
		config: cfg,
		out:    make(chan ChartData, 16),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// C returns the channel of emitted batches. It is closed when Run
// returns.
func (s *SpikeSource) C() <-chan ChartData {
	return s.out
}

// Run emits batches until the context is cancelled.
func (s *SpikeSource) Run(ctx context.Context) error {
	defer close(s.out)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := float64(time.Since(start)) / float64(time.Millisecond)
			batch := s.nextBatch(now)
			if batch.IsEmpty() {
				continue
			}
			select {
			case s.out <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// nextBatch rolls each series once and emits a spike in [0, 1) for the
// winners.
func (s *SpikeSource) nextBatch(now float64) ChartData {
	points := make(map[string][]Datum)
	for _, name := range s.config.SeriesNames {
		if s.rng.Float64() >= s.config.SpikeProbability {
			continue
		}
		points[name] = []Datum{{Time: now, Value: s.rng.Float64()}}
	}
	return ChartDataFrom(points)
}
