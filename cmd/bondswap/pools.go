package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var poolsCmd = &cobra.Command{
	Use:   "pools",
	Short: "List configured pools and their inventory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		m, err := openMarket(cmd)
		if err != nil {
			return err
		}
		defer closeMarket(cmd, m)

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, styles.Field("program", m.Registry.ProgramID().String()))
		fmt.Fprintln(out)
		for _, p := range m.Registry.List() {
			custodyA, err := m.Ledger.TokenBalance(ctx, p.CustodyA)
			if err != nil {
				return err
			}
			custodyB, err := m.Ledger.TokenBalance(ctx, p.CustodyB)
			if err != nil {
				return err
			}
			reserve, err := m.Ledger.Lamports(ctx, p.Reserve)
			if err != nil {
				return err
			}

			fmt.Fprintln(out, styles.Title.Render(p.Address.String()))
			fmt.Fprintln(out, styles.Field("mint a", p.MintA.String()))
			fmt.Fprintln(out, styles.Field("mint b", p.MintB.String()))
			fmt.Fprintln(out, styles.Field("authority", p.Authority.String()))
			fmt.Fprintln(out, styles.Field("custody a", custodyA))
			fmt.Fprintln(out, styles.Field("custody b", custodyB))
			fmt.Fprintln(out, styles.Field("reserve", reserve))
			fmt.Fprintln(out, styles.Muted.Render(fmt.Sprintf(
				"divisor=%d base=%d scale=%g rate=%g",
				p.Curve.Divisor, p.Curve.BasePrice, p.Curve.Scale, p.Curve.Rate)))
			fmt.Fprintln(out)
		}
		return nil
	},
}
