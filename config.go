package streamchart

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can spell intervals as
// "100ms" or "10s".
type Duration time.Duration

// UnmarshalYAML decodes either a duration string or a bare integer
// (interpreted as milliseconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: bad duration %q", ErrInvalidConfig, s)
		}
		*d = Duration(parsed)
		return nil
	}
	var ms int64
	if err := value.Decode(&ms); err != nil {
		return fmt.Errorf("%w: bad duration", ErrInvalidConfig)
	}
	*d = Duration(time.Duration(ms) * time.Millisecond)
	return nil
}

// MarshalYAML encodes the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ChartConfig is the declarative configuration of a chart: its axes, the
// series-to-axis assignments, and the pipeline timings. It can be built
// in code or loaded from a YAML file.
type ChartConfig struct {
	// WindowingTime is the stream buffering granularity.
	// Default: 100ms.
	WindowingTime Duration `yaml:"windowing_time"`

	// DropDataAfter is the retention horizon.
	// Default: 10s.
	DropDataAfter Duration `yaml:"drop_data_after"`

	// CadencePeriod is the heartbeat interval for the cadence policy.
	// Default: 25ms.
	CadencePeriod Duration `yaml:"cadence_period"`

	// MaxTime, when positive, bounds the chart in milliseconds; the
	// pipeline unsubscribes itself once an axis window reaches it.
	MaxTime float64 `yaml:"max_time"`

	// Axes declares the chart's axes; the first one is the default axis
	// for unassigned series.
	Axes []AxisConfig `yaml:"axes"`

	// Assignments maps series names to axis ids.
	Assignments map[string]AssignmentConfig `yaml:"assignments"`
}

// AxisConfig declares one axis.
type AxisConfig struct {
	ID   string `yaml:"id"`
	Kind string `yaml:"kind"` // "numeric" (default) or "category"

	// WindowStart and WindowEnd are the initial window of a numeric axis,
	// in milliseconds.
	WindowStart float64 `yaml:"window_start"`
	WindowEnd   float64 `yaml:"window_end"`

	// Categories are the bands of a category axis.
	Categories []string `yaml:"categories"`
}

// AssignmentConfig binds a series to axis ids.
type AssignmentConfig struct {
	XAxis string `yaml:"x_axis"`
	YAxis string `yaml:"y_axis"`
}

// DefaultChartConfig returns a single-axis chart configuration with
// sensible defaults: a 10s window that retains 10s of data.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		WindowingTime: Duration(100 * time.Millisecond),
		DropDataAfter: Duration(10 * time.Second),
		CadencePeriod: Duration(25 * time.Millisecond),
		Axes: []AxisConfig{
			{ID: "x", Kind: "numeric", WindowStart: 0, WindowEnd: 10_000},
		},
	}
}

// LoadChartConfig reads a ChartConfig from a YAML file.
func LoadChartConfig(path string) (ChartConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ChartConfig{}, fmt.Errorf("read chart config: %w", err)
	}
	var cfg ChartConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return ChartConfig{}, fmt.Errorf("parse chart config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return ChartConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for the errors the engine cannot
// recover from locally.
func (c ChartConfig) Validate() error {
	if len(c.Axes) == 0 {
		return fmt.Errorf("%w: at least one axis is required", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Axes))
	for _, a := range c.Axes {
		if a.ID == "" {
			return fmt.Errorf("%w: axis id is required", ErrInvalidConfig)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("%w: duplicate axis id %q", ErrInvalidConfig, a.ID)
		}
		seen[a.ID] = struct{}{}
		switch a.Kind {
		case "", "numeric":
			if a.WindowEnd <= a.WindowStart {
				return fmt.Errorf("%w: axis %q window is empty", ErrInvalidConfig, a.ID)
			}
		case "category":
			if len(a.Categories) == 0 {
				return fmt.Errorf("%w: category axis %q has no categories", ErrInvalidConfig, a.ID)
			}
		default:
			return fmt.Errorf("%w: axis %q has unknown kind %q", ErrInvalidConfig, a.ID, a.Kind)
		}
	}
	return nil
}

// BuildRegistry constructs the axis registry declared by the config, in
// declaration order.
func (c ChartConfig) BuildRegistry() *AxisRegistry {
	reg := NewAxisRegistry()
	for _, a := range c.Axes {
		switch a.Kind {
		case "category":
			reg = reg.WithAxis(a.ID, NewCategoryAxis(a.ID, a.Categories))
		default:
			reg = reg.WithAxis(a.ID, NewAxis(a.ID, a.WindowStart, a.WindowEnd))
		}
	}
	return reg
}

// PipelineConfig derives the pipeline configuration, leaving the
// callbacks for the caller to fill in.
func (c ChartConfig) PipelineConfig() PipelineConfig {
	cfg := PipelineConfig{
		WindowingTime: time.Duration(c.WindowingTime),
		DropDataAfter: time.Duration(c.DropDataAfter),
		CadencePeriod: time.Duration(c.CadencePeriod),
		MaxTime:       c.MaxTime,
	}
	cfg.normalize()
	if len(c.Assignments) > 0 {
		cfg.AxisAssignments = make(map[string]AxisAssignment, len(c.Assignments))
		for name, a := range c.Assignments {
			cfg.AxisAssignments[name] = AxisAssignment{XAxisID: a.XAxis, YAxisID: a.YAxis}
		}
	}
	return cfg
}
