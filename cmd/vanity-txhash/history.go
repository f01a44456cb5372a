package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/journal"
	"github.com/Liam-Dow/vanity-txhash-deployer/internal/present"
)

const defaultHistoryLimit = 20

func newHistoryCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past searches recorded in the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Maximum entries to show (0 for all)")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	if cfg.Journal == "" {
		return fmt.Errorf("history needs --journal")
	}
	jrnl, err := journal.Open(logger, cfg.Journal)
	if err != nil {
		return err
	}
	defer jrnl.Close()

	entries, err := jrnl.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.JSON {
		if entries == nil {
			entries = []journal.Entry{}
		}
		return printJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No searches recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tSTATUS\tCHAIN\tPREFIX\tHASH\tATTEMPTS\tBROADCAST")
	for _, e := range entries {
		hash := e.Report.Hash
		if hash == "" && e.Report.ClosestHash != "" {
			hash = fmt.Sprintf("~%s (%d)", e.Report.ClosestHash, e.Report.ClosestNibbles)
		}
		broadcast := e.BroadcastHash
		if broadcast == "" {
			broadcast = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%d\t%s\n",
			e.ID, e.CreatedAt.Format(time.DateTime), e.Report.Status, e.Report.ChainID,
			e.Report.Prefix, hash, e.Report.Attempts, broadcast)
	}
	return w.Flush()
}

// printJSON writes v through the presenter so every subcommand shares one encoder.
func printJSON(out io.Writer, v any) error {
	return present.New(out, nil).JSON(v)
}
