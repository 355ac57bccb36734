package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/chazu/cutsim/pkg/logging"
	"github.com/chazu/cutsim/pkg/sim"
)

var (
	configPath  string
	logLevel    string
	meshOut     string
	metricsOut  string
	smoothMesh  bool
	jsonOutput  bool
	failOnCrash bool

	cfg    sim.Config
	logger *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:   "cutsim",
	Short: "Octree material removal simulator",
	Long: `Simulate a machining job on an octree stock model.

A job script declares the stock, the tools and a list of boolean steps and
tool moves. Feed moves cut the stock; rapid moves are checked for contact.

Examples:
  cutsim validate job.lisp
  cutsim run job.lisp --mesh stock.json
  cutsim run job.lisp --config cutsim.yaml --smooth --json`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var runCmd = &cobra.Command{
	Use:   "run SCRIPT",
	Short: "Simulate a job script",
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

var validateCmd = &cobra.Command{
	Use:   "validate SCRIPT",
	Short: "Evaluate and validate a job script without simulating it",
	Args:  cobra.ExactArgs(1),
	RunE:  validateScript,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override the configured log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Print the result as JSON")

	runCmd.Flags().StringVar(&meshOut, "mesh", "",
		"Write the meshes as JSON to this file")
	runCmd.Flags().StringVar(&metricsOut, "metrics", "",
		"Write Prometheus metrics in text format to this file")
	runCmd.Flags().BoolVar(&smoothMesh, "smooth", false,
		"Mesh the stock from the interpolated field")
	runCmd.Flags().BoolVar(&failOnCrash, "fail-on-collision", false,
		"Stop at the first rapid move that touches the stock")

	rootCmd.AddCommand(runCmd, validateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = sim.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("fail-on-collision") {
		cfg.FailOnCollision = failOnCrash
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err = logging.NewLogger("cutsim", cfg.LogLevel)
	return err
}

func readScript(path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrap(err, "read script")
	}
	return string(src), nil
}

func validateScript(cmd *cobra.Command, args []string) error {
	source, err := readScript(args[0])
	if err != nil {
		return err
	}
	result, _ := NewApp(cfg, logger).Validate(source)
	return printResult(cmd.OutOrStdout(), args[0], result)
}

func runScript(cmd *cobra.Command, args []string) error {
	source, err := readScript(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := NewApp(cfg, logger)
	result := app.Evaluate(ctx, source, smoothMesh)

	if meshOut != "" && len(result.Meshes) > 0 {
		if err := writeMeshes(meshOut, result.Meshes); err != nil {
			return err
		}
		logger.Infow("meshes written", "path", meshOut, "meshes", len(result.Meshes))
	}
	if metricsOut != "" {
		if err := prometheus.WriteToTextfile(metricsOut, app.Registry()); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	return printResult(cmd.OutOrStdout(), args[0], result)
}

func writeMeshes(path string, meshes []MeshData) error {
	data, err := json.Marshal(meshes)
	if err != nil {
		return errors.Wrap(err, "encode meshes")
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write meshes")
}

// printResult reports result on w and returns an error when it holds
// eval, validation or simulation errors.
func printResult(w io.Writer, name string, result EvalResult) error {
	if jsonOutput {
		out := result
		out.Meshes = nil
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return errors.Wrap(err, "encode result")
		}
	} else {
		for _, e := range result.Errors {
			fmt.Fprintf(w, "%s: %s\n", location(name, e), e.Message)
		}
		for _, wn := range result.Warnings {
			fmt.Fprintf(w, "%s: warning: %s\n", location(name, wn), wn.Message)
		}
		if r := result.Report; r != nil {
			fmt.Fprintf(w, "%d steps (%d cuts, %d rapids), %d collisions\n",
				r.Steps, r.Cuts, r.Rapids, len(r.Collisions))
			fmt.Fprintf(w, "%d nodes, %d leaves, %d triangles in %dms\n",
				r.Nodes, r.Leaves, r.Triangles, r.ElapsedMS)
		}
	}
	if len(result.Errors) > 0 {
		return errors.Errorf("%s: %d errors", name, len(result.Errors))
	}
	return nil
}

func location(name string, e EvalErrorData) string {
	switch {
	case e.Line > 0:
		return fmt.Sprintf("%s:%d", name, e.Line)
	case e.Step >= 0:
		return fmt.Sprintf("%s: step %d", name, e.Step)
	default:
		return name
	}
}
