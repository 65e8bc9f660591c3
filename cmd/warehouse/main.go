// Command warehouse builds the Northwind shipment warehouse from the
// configured extracts.
//
//	warehouse build    --config pipeline.yaml [--metrics-backend datadog]
//	warehouse validate --config pipeline.yaml
//	warehouse tables   --config pipeline.yaml
//	warehouse probe    --config pipeline.yaml [Orders_A ...]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"warehouse/internal/config"
	"warehouse/internal/logger"
	"warehouse/internal/pipeline"
	"warehouse/internal/report"

	// register all backends with the storage factory; the config picks one.
	_ "warehouse/internal/storage/all"
)

// errInvalidConfig is returned after validation findings were printed.
var errInvalidConfig = errors.New("configuration is invalid")

type rootOptions struct {
	cfgPath string
	envFile string
	verbose bool
}

type buildOptions struct {
	metricsBackend string
	pushgatewayURL string
	timeDimension  string
	noColor        bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "warehouse",
		Short:         "Build the Northwind shipment warehouse",
		Long:          "warehouse unifies two Northwind extracts and writes a star schema (dim_time, dim_employees, dim_customers, dim_products, fact_orders).",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.cfgPath, "config", "c", "", "pipeline config (JSON or YAML); built-in defaults under the working directory when empty")
	pf.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config is expanded")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logs")

	root.AddCommand(newBuildCmd(opts), newValidateCmd(opts), newTablesCmd(opts), newProbeCmd(opts))
	return root
}

func newBuildCmd(root *rootOptions) *cobra.Command {
	opts := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Load, unify and transform the extracts and replace the warehouse tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadValidConfig(root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if opts.timeDimension != "" {
				p.TimeDimension = opts.timeDimension
			}

			log := logger.New(cmd.ErrOrStderr(), root.verbose)
			ctx := logger.WithContext(cmd.Context(), log)

			closeMetrics, err := setupMetrics(ctx, metricsSettings{
				backend: opts.metricsBackend,
				gateway: opts.pushgatewayURL,
				job:     p.Job,
			}, log)
			if err != nil {
				return err
			}
			defer closeMetrics()

			res, runErr := pipeline.New(p, log).Run(ctx)
			report.Renderer{UseColor: !opts.noColor}.Render(cmd.OutOrStdout(), res)
			return runErr
		},
	}

	opts.bind(cmd.Flags())
	return cmd
}

func (o *buildOptions) bind(f *pflag.FlagSet) {
	f.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: pushgateway, datadog or none (overrides env METRICS_BACKEND)")
	f.StringVar(&o.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (overrides env PUSHGATEWAY_URL)")
	f.StringVar(&o.timeDimension, "time-dimension", "", "override time_dimension: realistic or synthetic")
	f.BoolVar(&o.noColor, "no-color", false, "disable colored summary output")
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the pipeline configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadValidConfig(root, cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %s\n", configLabel(root.cfgPath))
			return nil
		},
	}
}

func newTablesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the configured extracts and the warehouse target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := loadConfig(root)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			t := tablewriter.NewWriter(w)
			t.SetHeader([]string{"Table", "Kind", "Location"})
			t.SetBorder(false)
			t.SetAutoWrapText(false)
			t.SetAutoFormatHeaders(false)
			for _, s := range p.Sources {
				t.Append([]string{s.Name(), s.Kind, location(s)})
			}
			t.Render()

			fmt.Fprintf(w, "\nwarehouse: %s (%s)\n", p.Storage.Kind, p.Storage.DSN)
			for _, name := range pipeline.OutputTables {
				fmt.Fprintf(w, "  %s\n", name)
			}
			return nil
		},
	}
}

func newProbeCmd(root *rootOptions) *cobra.Command {
	var noColor bool
	cmd := &cobra.Command{
		Use:   "probe [source or entity ...]",
		Short: "Profile the configured extracts: column types, fill, and key health",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadValidConfig(root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			log := logger.New(cmd.ErrOrStderr(), root.verbose)
			profiles := pipeline.New(p, log).Probe(cmd.Context(), args...)
			if len(profiles) == 0 {
				return fmt.Errorf("probe: no configured source matches %v", args)
			}
			report.Renderer{UseColor: !noColor}.RenderProfiles(cmd.OutOrStdout(), profiles)
			return nil
		},
	}
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")
	return cmd
}

func loadConfig(root *rootOptions) (config.Pipeline, error) {
	if err := config.LoadEnv(root.envFile); err != nil {
		return config.Pipeline{}, err
	}
	if root.cfgPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Pipeline{}, err
		}
		return config.Default(wd), nil
	}
	return config.Load(root.cfgPath)
}

// loadValidConfig loads the config and prints every validation finding to
// w. Errors make it fail with errInvalidConfig.
func loadValidConfig(root *rootOptions, w io.Writer) (config.Pipeline, error) {
	p, err := loadConfig(root)
	if err != nil {
		return config.Pipeline{}, err
	}
	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return config.Pipeline{}, fmt.Errorf("%w: %s", errInvalidConfig, configLabel(root.cfgPath))
	}
	return p, nil
}

func configLabel(path string) string {
	if path == "" {
		return "built-in defaults"
	}
	return path
}

// location describes where a source is read from without printing DSNs,
// which may carry credentials.
func location(s config.Source) string {
	if s.Kind != "sql" {
		return s.Path
	}
	if s.Query != "" {
		return s.Driver + ": custom query"
	}
	tbl := s.Table
	if tbl == "" {
		tbl = s.Entity
	}
	return s.Driver + ": " + tbl
}
