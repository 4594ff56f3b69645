// Command sourcer finds suppliers for a procurement requirement, validates
// them against the business registry and prints a comparison table.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/FranksOps/sourcer/internal/config"
	"github.com/FranksOps/sourcer/internal/metrics"
	"github.com/FranksOps/sourcer/internal/report"
	"github.com/FranksOps/sourcer/internal/server"
	"github.com/FranksOps/sourcer/internal/storage"
	"github.com/FranksOps/sourcer/internal/tools"
)

type cli struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	errOut  io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{out: os.Stdout, errOut: os.Stderr}
	if err := c.root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func (c *cli) root() *cobra.Command {
	c.v = config.New()

	root := &cobra.Command{
		Use:           "sourcer",
		Short:         "Supplier discovery and registry validation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(c.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(c.v, c.cfgFile)
			if err != nil {
				return err
			}
			logger, err := cfg.Log.Logger(c.errOut)
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, logger
			slog.SetDefault(logger)
			return nil
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("storage-backend", config.BackendNone, "run record storage: none, sqlite, postgres, json, csv")
	pf.String("storage-dsn", "", "storage file path or postgres connection string")
	pf.Bool("mock-registry", true, "serve registry lookups from synthetic data")
	pf.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")
	c.bind(pf.Lookup("log-level"), "log.level")
	c.bind(pf.Lookup("log-format"), "log.format")
	c.bind(pf.Lookup("storage-backend"), "storage.backend")
	c.bind(pf.Lookup("storage-dsn"), "storage.dsn")
	c.bind(pf.Lookup("mock-registry"), "registry.use_mock")
	c.bind(pf.Lookup("metrics-port"), "metrics.port")

	root.AddCommand(c.runCmd(), c.searchCmd(), c.validateCmd(), c.serveCmd(), c.reportCmd(), c.companiesCmd())
	return root
}

func (c *cli) bind(f *pflag.Flag, key string) {
	_ = c.v.BindPFlag(key, f)
}

// startMetrics starts the standalone metrics listener when configured.
func (c *cli) startMetrics() func() {
	if c.cfg.Metrics.Port == 0 {
		return func() {}
	}
	srv := metrics.Start(c.cfg.Metrics.Port, c.logger)
	return func() { _ = srv.Stop(context.Background()) }
}

func (c *cli) runCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "run <requirement>",
		Short: "Plan searches, find suppliers, validate them and print a comparison table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := report.ParseFormat(format)
			if err != nil {
				return err
			}
			defer c.startMetrics()()

			a, err := newApp(cmd.Context(), c.cfg, c.logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.pipeline(c.cfg.Pipeline.Enrich)
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			if f == report.FormatJSON {
				return report.WriteJSON(w, res)
			}
			return report.Write(w, res.Table, f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: markdown, text, html, json (default from report.format)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().Bool("enrich", false, "visit supplier pages for contacts and facts")
	cmd.Flags().Int("max-suppliers", 10, "maximum suppliers to validate")
	c.bind(cmd.Flags().Lookup("enrich"), "pipeline.enrich")
	c.bind(cmd.Flags().Lookup("max-suppliers"), "pipeline.max_suppliers")
	cmd.PreRunE = func(*cobra.Command, []string) error {
		if format == "" {
			format = c.cfg.Report.Format
		}
		return nil
	}
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var (
		count  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the web and list supplier candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.caps.SearchSuppliers(cmd.Context(), args[0], count)
			if asJSON {
				return report.WriteJSON(cmd.OutOrStdout(), res)
			}
			if res.Status != "success" {
				return fmt.Errorf("search failed: %s", res.Error)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"#", "Company", "Source URL"})
			for i, s := range res.Suppliers {
				tw.AppendRow(table.Row{i + 1, s.CompanyName, s.SourceURL})
			}
			tw.AppendFooter(table.Row{"", fmt.Sprintf("%d suppliers", res.SupplierCount), ""})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", tools.DefaultSearchCount, "number of search results (max 50)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result envelope")
	return cmd
}

func (c *cli) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <company>...",
		Short: "Validate companies against the business registry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			profiles := a.validator.ValidateAll(cmd.Context(), args)
			if len(profiles) == 1 {
				return report.WriteJSON(cmd.OutOrStdout(), profiles[0])
			}
			return report.WriteJSON(cmd.OutOrStdout(), profiles)
		},
	}
}

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the sourcing tools and pipeline over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.logger, true)
			if err != nil {
				return err
			}
			defer a.Close()

			p, err := a.pipeline(c.cfg.Pipeline.Enrich)
			if err != nil {
				return err
			}
			h, err := server.New(server.Config{
				Tools:      tools.NewRegistry(a.caps),
				Runner:     p,
				Logger:     c.logger,
				RunTimeout: c.cfg.Server.RunTimeout,
			})
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              c.cfg.Server.Addr,
				Handler:           h,
				ReadHeaderTimeout: 5 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			c.logger.Info("server listening", "addr", srv.Addr)

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server: %w", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			c.logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	c.bind(cmd.Flags().Lookup("addr"), "server.addr")
	return cmd
}

func (c *cli) reportCmd() *cobra.Command {
	var (
		runID  string
		kind   string
		since  time.Duration
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored run records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend, err := openBackend(cmd.Context(), c.cfg.Storage)
			if err != nil {
				return err
			}
			if backend == nil {
				return errors.New("no storage backend configured; set --storage-backend and --storage-dsn")
			}
			defer backend.Close()

			filter := storage.Filter{RunID: runID, Kind: storage.Kind(kind), Limit: limit}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}
			records, err := backend.Query(cmd.Context(), filter)
			if err != nil {
				return err
			}

			summary := report.GenerateSummary(records)
			if asJSON {
				return report.WriteJSON(cmd.OutOrStdout(), summary)
			}
			return report.WriteSummaryText(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "only records of this run")
	cmd.Flags().StringVar(&kind, "kind", "", "only records of this kind: search, validate, enrich")
	cmd.Flags().DurationVar(&since, "since", 0, "only records newer than this, e.g. 24h")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum records to read (0 is all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *cli) companiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "companies",
		Short: "List the synthetic registry companies (mock registry only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.cfg.Registry.UseMock {
				return errors.New("companies is only available with the mock registry")
			}
			a, err := newApp(cmd.Context(), c.cfg, c.logger, false)
			if err != nil {
				return err
			}
			defer a.Close()

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"ID", "Name", "Capital", "Established", "Staff"})
			for _, co := range a.store.Companies() {
				tw.AppendRow(table.Row{co.CompanyID, co.Name, co.RegCapital, co.EstablishTime, co.StaffNumRange})
			}
			tw.Render()
			return nil
		},
	}
}
