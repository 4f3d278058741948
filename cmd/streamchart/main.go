package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/streamchart-io/streamchart"
)

func main() {
	root := &cobra.Command{
		Use:   "streamchart",
		Short: "Live time-series windowing engine demo",
	}
	root.AddCommand(newRunCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		tailPath   string
		simulate   bool
		duration   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a chart pipeline against a sample source and log window updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !simulate && tailPath == "" {
				return fmt.Errorf("either --simulate or --tail is required")
			}
			return runChart(configPath, tailPath, simulate, duration)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "f", "", "Path to the YAML chart config (optional)")
	cmd.Flags().StringVar(&tailPath, "tail", "", "NDJSON sample log to follow")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "Generate random spike data")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 = run until interrupted)")
	return cmd
}

func runChart(configPath, tailPath string, simulate bool, duration time.Duration) error {
	cfg := streamchart.DefaultChartConfig()
	if configPath != "" {
		loaded, err := streamchart.LoadChartConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	pcfg := cfg.PipelineConfig()
	pcfg.OnCurrentTime = func(axisID string, end float64) {
		log.Debug("window slide", "axis", axisID, "end_ms", end)
	}
	pcfg.OnRender = func(ranges map[string]streamchart.ContinuousAxisRange) {
		for id, r := range ranges {
			log.Info("render", "axis", id, "start_ms", r.Start, "end_ms", r.End)
		}
	}

	store := streamchart.NewSeriesStore()
	pipeline := streamchart.NewPipeline(store, cfg.BuildRegistry(), pcfg)

	hub := streamchart.NewHub(streamchart.DefaultHubConfig())
	defer hub.Close()
	chartSub, err := hub.Subscribe()
	if err != nil {
		return err
	}

	sub := pipeline.SubscriptionWithCadenceFor(chartSub.C())
	defer sub.Unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return publishFrom(ctx, hub, tailPath, simulate, seriesNamesFor(cfg))
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-sub.Done():
			log.Info("pipeline unsubscribed itself", "max_time_ms", pcfg.MaxTime)
		}
		return nil
	})

	err = g.Wait()
	stats := pipeline.Stats()
	log.Info("done",
		"batches_in", stats.BatchesIn,
		"points_in", stats.PointsIn,
		"points_evicted", stats.PointsEvicted,
		"groups", stats.GroupsProcessed,
	)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func publishFrom(ctx context.Context, hub *streamchart.Hub, tailPath string, simulate bool, seriesNames []string) error {
	if simulate {
		source := streamchart.NewSpikeSource(streamchart.SpikeSourceConfig{
			SeriesNames: seriesNames,
		})
		go func() {
			for batch := range source.C() {
				hub.Publish(batch)
			}
		}()
		return source.Run(ctx)
	}

	source := streamchart.NewTailSource(tailPath)
	go func() {
		for batch := range source.C() {
			hub.Publish(batch)
		}
	}()
	return source.Run(ctx)
}

// seriesNamesFor picks the simulated series: the configured assignments
// when present, otherwise a small default set.
func seriesNamesFor(cfg streamchart.ChartConfig) []string {
	if len(cfg.Assignments) > 0 {
		names := make([]string, 0, len(cfg.Assignments))
		for name := range cfg.Assignments {
			names = append(names, name)
		}
		return names
	}
	return []string{"neuron-1", "neuron-2", "neuron-3"}
}
