package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/chain"
	"github.com/Liam-Dow/vanity-txhash-deployer/internal/config"
)

func newGasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gas",
		Short: "Print the current base fee and typical priority fee",
		Long: fmt.Sprintf(`Prints the latest block's base fee and the average %gth percentile priority fee
over the last %d blocks, which is a reasonable floor for --base-fee and --priority-fee.`,
			chain.FeeHistoryPercentile, chain.FeeHistoryBlocks),
		Args: cobra.NoArgs,
		RunE: runGas,
	}
}

func runGas(cmd *cobra.Command, args []string) error {
	if cfg.RPC == "" {
		return config.ErrNoRPC
	}
	client, closeClient, err := chain.Dial(cmd.Context(), logger, cfg.RPC)
	if err != nil {
		return err
	}
	defer closeClient()

	prices, err := client.GasPrices(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.JSON {
		return printJSON(out, map[string]string{
			"baseFee":     prices.BaseFee.String(),
			"priorityFee": prices.PriorityFee.String(),
			"total":       prices.Total().String(),
		})
	}
	fmt.Fprintln(out, "Current Network Gas Prices:")
	fmt.Fprintf(out, "Base Fee: %.5f Gwei\n", chain.ToGwei(prices.BaseFee))
	fmt.Fprintf(out, "Priority Fee: %.5f Gwei\n", chain.ToGwei(prices.PriorityFee))
	fmt.Fprintf(out, "Total: %.5f Gwei\n", chain.ToGwei(prices.Total()))
	return nil
}
