package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/bondswap/internal/curve"
	"github.com/rovshanmuradov/bondswap/internal/ledger"
	"github.com/rovshanmuradov/bondswap/internal/pool"
	"github.com/rovshanmuradov/bondswap/internal/swap"
)

var quoteFlags struct {
	mintA    string
	mintB    string
	leg      string
	strategy string
	amount   uint64
	supply   int64
	live     bool
}

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a trade without settling it",
	Long: `Price a trade against a pool. Supply comes from the local ledger
unless --supply pins it or --live reads it from the configured cluster.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		leg, err := pool.ParseLeg(quoteFlags.leg)
		if err != nil {
			return err
		}
		strategy, err := curve.ParseStrategy(quoteFlags.strategy)
		if err != nil {
			return err
		}

		m, err := openMarket(cmd)
		if err != nil {
			return err
		}
		defer closeMarket(cmd, m)

		p, err := selectPool(m, quoteFlags.mintA, quoteFlags.mintB)
		if err != nil {
			return err
		}
		req := swap.Request{Pool: p, Leg: leg, Amount: quoteFlags.amount, Strategy: strategy}

		var q swap.Quote
		switch {
		case quoteFlags.live:
			q, err = swap.QuoteFrom(ctx, supplySource(m), req)
		case quoteFlags.supply >= 0:
			mint, mintErr := p.Mint(leg)
			if mintErr != nil {
				return mintErr
			}
			q, err = swap.QuoteFrom(ctx, ledger.StaticSupply{mint: uint64(quoteFlags.supply)}, req)
		default:
			q, err = m.Engine.Quote(ctx, req)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.Title.Render("Quote"))
		fmt.Fprintln(out, styles.Field("pool", q.Pool.String()))
		fmt.Fprintln(out, styles.Field("mint", q.Mint.String()))
		fmt.Fprintln(out, styles.Field("leg", q.Leg.String()))
		fmt.Fprintln(out, styles.Field("strategy", q.Strategy.String()))
		fmt.Fprintln(out, styles.Field("supply", q.Supply))
		fmt.Fprintln(out, styles.Field("amount", q.Amount))
		fmt.Fprintln(out, styles.Field("unit price", q.UnitPrice))
		fmt.Fprintln(out, styles.Field("total", q.TotalPrice))
		return nil
	},
}

func init() {
	f := quoteCmd.Flags()
	f.StringVar(&quoteFlags.mintA, "mint-a", "", "first mint of the pool (default: first configured pool)")
	f.StringVar(&quoteFlags.mintB, "mint-b", "", "second mint of the pool")
	f.StringVar(&quoteFlags.leg, "leg", "a", "leg to price (a or b)")
	f.StringVar(&quoteFlags.strategy, "strategy", "linear", "pricing strategy (linear or exponential)")
	f.Uint64Var(&quoteFlags.amount, "amount", 1, "units to price")
	f.Int64Var(&quoteFlags.supply, "supply", -1, "price at this supply instead of reading it")
	f.BoolVar(&quoteFlags.live, "live", false, "read supply from the configured cluster")
	quoteCmd.MarkFlagsMutuallyExclusive("supply", "live")
	quoteCmd.MarkFlagsRequiredTogether("mint-a", "mint-b")
}
