package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/export"
	"github.com/rovshanmuradov/bondswap/internal/sim"
	"github.com/rovshanmuradov/bondswap/internal/swap"
)

var simFlags struct {
	traders    int
	trades     int
	lamports   uint64
	maxAmount  uint64
	faultRate  float64
	seed       int64
	strategies []string
	exportDir  string
	format     string
	direction  string
	serve      bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run concurrent traders against the first pool and check conservation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		scfg := sim.Config{
			Traders:        simFlags.traders,
			TradesEach:     simFlags.trades,
			TraderLamports: simFlags.lamports,
			MaxAmount:      simFlags.maxAmount,
			FaultRate:      simFlags.faultRate,
			Seed:           simFlags.seed,
		}
		for _, name := range simFlags.strategies {
			s, err := curve.ParseStrategy(name)
			if err != nil {
				return err
			}
			scfg.Strategies = append(scfg.Strategies, s)
		}
		format, err := export.ParseFormat(simFlags.format)
		if err != nil {
			return err
		}
		var direction swap.Direction
		if simFlags.direction != "" {
			if direction, err = swap.ParseDirection(simFlags.direction); err != nil {
				return err
			}
		}

		m, err := openMarket(cmd)
		if err != nil {
			return err
		}
		defer closeMarket(cmd, m)

		p, err := selectPool(m, "", "")
		if err != nil {
			return err
		}

		stopMetrics := serveMetrics(m.Metrics.Handler())
		defer stopMetrics()

		end := log.TrackPerformance("simulate")
		report, err := sim.Run(ctx, m.Ledger, p, scfg, log.WithPool(p),
			swap.WithPublisher(m.Bus), swap.WithRecorder(m.Metrics))
		end()
		if err != nil {
			return err
		}
		m.Observe(ctx, p)

		printReport(cmd, report)

		if simFlags.exportDir != "" {
			path, err := export.NewReceiptExporter(log.Logger).Export(report.Receipts, export.Options{
				Format:    format,
				Pool:      p.Address.String(),
				Direction: direction,
				OutputDir: simFlags.exportDir,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.Field("exported", path))
		}

		if !report.Conserved() {
			return errors.New("conservation check failed")
		}

		if simFlags.serve && cfg.MetricsAddr != "" {
			fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("serving metrics on "+cfg.MetricsAddr+", interrupt to exit"))
			<-ctx.Done()
		}
		return nil
	},
}

func init() {
	def := sim.DefaultConfig()
	f := simulateCmd.Flags()
	f.IntVar(&simFlags.traders, "traders", def.Traders, "concurrent traders")
	f.IntVar(&simFlags.trades, "trades", def.TradesEach, "trades per trader")
	f.Uint64Var(&simFlags.lamports, "lamports", def.TraderLamports, "lamports airdropped to each trader")
	f.Uint64Var(&simFlags.maxAmount, "max-amount", def.MaxAmount, "largest trade size")
	f.Float64Var(&simFlags.faultRate, "fault-rate", def.FaultRate, "chance that a ledger call fails")
	f.Int64Var(&simFlags.seed, "seed", def.Seed, "random seed")
	f.StringSliceVar(&simFlags.strategies, "strategy", []string{"linear"}, "pricing strategies to mix")
	f.StringVar(&simFlags.exportDir, "export-dir", "", "write settled receipts to this directory")
	f.StringVar(&simFlags.format, "format", string(export.FormatCSV), "export format (csv or json)")
	f.StringVar(&simFlags.direction, "direction", "", "export only buys or sells (default both)")
	f.BoolVar(&simFlags.serve, "serve", false, "keep serving metrics after the run")
}

// serveMetrics exposes handler on cfg.MetricsAddr. The returned func stops
// the server.
func serveMetrics(handler http.Handler) func() {
	if cfg.MetricsAddr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()
	log.Info("Serving metrics", zap.String("addr", cfg.MetricsAddr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func printReport(cmd *cobra.Command, r *sim.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, styles.Title.Render("Simulation"))
	fmt.Fprintln(out, styles.Field("committed", r.Committed))
	fmt.Fprintln(out, styles.Field("aborted", r.Aborted))

	kinds := make([]string, 0, len(r.ByKind))
	for k := range r.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintln(out, styles.Field("  "+k, r.ByKind[k]))
	}

	fmt.Fprintln(out, styles.Field("lamports", fmt.Sprintf("%d -> %d", r.Before.Lamports, r.After.Lamports)))
	fmt.Fprintln(out, styles.Field("leg a", fmt.Sprintf("%d -> %d", r.Before.LegA, r.After.LegA)))
	fmt.Fprintln(out, styles.Field("leg b", fmt.Sprintf("%d -> %d", r.Before.LegB, r.After.LegB)))

	if r.Conserved() {
		fmt.Fprintln(out, styles.Success.Render("value conserved"))
		return
	}
	for _, v := range r.Violations {
		fmt.Fprintln(out, styles.Error.Render(v))
	}
}
