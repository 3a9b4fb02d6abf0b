package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/sarchlab/curvesim/config"
	"github.com/sarchlab/curvesim/scenario"
	"github.com/sarchlab/curvesim/sim/stateful"
	"github.com/sarchlab/curvesim/simulation"
	"github.com/spf13/cobra"
)

type runOptions struct {
	output   string
	snapshot string
	hold     bool
}

func newRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario and print its trace.",
		Long: `Run a scenario and print a line per invocation. Settings are ` +
			`read from CURVESIM_* environment variables; flags override them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.EnvFile)
			if err != nil {
				return err
			}

			applyFlags(cmd, &cfg)

			return runScenario(cmd, cfg, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "",
		"Write the trace into a file instead of stdout")
	flags.StringVar(&opts.snapshot, "snapshot", "",
		"Write the final keyframes of all entities into a JSON or YAML file")
	flags.BoolVar(&opts.hold, "hold", false,
		"Keep the monitor running after the scenario ends, until interrupted")
	flags.Int("max-iterations", 0, "Invocations allowed per step")
	flags.Bool("log-events", false, "Print every invocation to stderr")
	flags.Bool("record", false, "Record the event trace into SQLite")
	flags.String("record-path", "",
		"Recording file name, without the .sqlite3 extension")
	flags.Bool("skip-reschedules", false,
		"Keep reschedules out of the recording")
	flags.Float64("sample-period", 0,
		"Sample every continuous curve with this period")
	flags.String("sample-path", "",
		"CSV file name for the samples, without the .csv extension")
	flags.Bool("monitor", false, "Serve the monitoring API")
	flags.Int("monitor-port", 0, "Port of the monitoring API")
	flags.Bool("open-browser", false, "Open the monitoring API in a browser")

	return cmd
}

// applyFlags overrides the configuration with the flags given explicitly.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("max-iterations") {
		cfg.MaxIterations, _ = flags.GetInt("max-iterations")
	}

	if flags.Changed("log-events") {
		cfg.LogEvents, _ = flags.GetBool("log-events")
	}

	if flags.Changed("record") {
		cfg.Record, _ = flags.GetBool("record")
	}

	if flags.Changed("record-path") {
		cfg.RecordPath, _ = flags.GetString("record-path")
		cfg.Record = true
	}

	if flags.Changed("skip-reschedules") {
		cfg.SkipReschedules, _ = flags.GetBool("skip-reschedules")
	}

	if flags.Changed("sample-period") {
		cfg.SamplePeriod, _ = flags.GetFloat64("sample-period")
	}

	if flags.Changed("sample-path") {
		cfg.SamplePath, _ = flags.GetString("sample-path")
	}

	if flags.Changed("monitor") {
		cfg.Monitor, _ = flags.GetBool("monitor")
	}

	if flags.Changed("monitor-port") {
		cfg.MonitorPort, _ = flags.GetInt("monitor-port")
		cfg.Monitor = true
	}

	if flags.Changed("open-browser") {
		cfg.OpenBrowser, _ = flags.GetBool("open-browser")
	}
}

func runScenario(
	cmd *cobra.Command,
	cfg config.Config,
	opts *runOptions,
	path string,
) error {
	if cfg.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d",
			cfg.MaxIterations)
	}

	if cfg.SamplePeriod < 0 {
		return fmt.Errorf("sample period must not be negative, got %g",
			cfg.SamplePeriod)
	}

	s, err := scenario.Load(path)
	if err != nil {
		return err
	}

	var out io.Writer = cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()

		out = f
	}

	r := scenario.NewRunner(s, simulation.MakeBuilder().WithConfig(cfg), out)
	defer r.Terminate()

	err = r.Run()
	if err != nil {
		return fmt.Errorf("running %s: %w", s.Name, err)
	}

	if opts.snapshot != "" {
		err = saveSnapshot(opts.snapshot, r.Simulation())
		if err != nil {
			return err
		}
	}

	if opts.hold && r.Simulation().GetMonitor() != nil {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"Scenario %s finished, monitor at %s. Press Ctrl+C to exit.\n",
			s.Name, r.Simulation().MonitorURL())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		<-ctx.Done()
	}

	return nil
}

func saveSnapshot(path string, sim *simulation.Simulation) error {
	var states []stateful.State
	for _, e := range sim.Entities() {
		if s, ok := e.(stateful.State); ok {
			states = append(states, s)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	err = stateful.Save(f, stateful.CodecFor(path), states)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}

	return nil
}
