package main

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var supplyCmd = &cobra.Command{
	Use:   "supply <mint>...",
	Short: "Read circulating supply of mints from the configured cluster",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mints := make([]solana.PublicKey, len(args))
		for i, arg := range args {
			mint, err := solana.PublicKeyFromBase58(arg)
			if err != nil {
				return fmt.Errorf("invalid mint %q: %w", arg, err)
			}
			mints[i] = mint
		}

		src := supplySource(nil)
		supplies := make([]uint64, len(mints))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(4)
		for i, mint := range mints {
			g.Go(func() error {
				v, err := src.Supply(ctx, mint)
				if err != nil {
					return err
				}
				supplies[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, mint := range mints {
			fmt.Fprintln(out, styles.Field(mint.String()[:8], supplies[i]), styles.Muted.Render(mint.String()))
		}
		return nil
	},
}
