package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/data"
	relaymcp "github.com/DevRickLin/feishu-relay/internal/mcp"
)

func newStatusCmd() *cobra.Command {
	var live bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the state of every account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			var snaps []domain.AccountSnapshot
			if live {
				ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
				defer cancel()
				snaps, err = relaymcp.NewClient(cfg.API.BaseURL()).ListAccounts(ctx)
			} else {
				snaps, err = persistedSnapshots(cmd.Context(), cfg.Storage.DBPath)
			}
			if err != nil {
				return err
			}
			printSnapshots(cmd.OutOrStdout(), snaps)
			return nil
		},
	}
	cmd.Flags().BoolVar(&live, "live", false, "query the running relay instead of the persisted snapshots")
	return cmd
}

func persistedSnapshots(ctx context.Context, dbPath string) ([]domain.AccountSnapshot, error) {
	db, err := data.OpenDB(dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	accounts, err := data.NewAccountRepo(db)
	if err != nil {
		return nil, err
	}
	return accounts.ListSnapshots(ctx)
}

func printSnapshots(out io.Writer, snaps []domain.AccountSnapshot) {
	if len(snaps) == 0 {
		fmt.Fprintln(out, "no account state recorded")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ACCOUNT\tCONFIGURED\tRUNNING\tCONNECTED\tMESSAGES\tERRORS\tLAST INBOUND\tLAST ERROR")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%t\t%t\t%t\t%d\t%d\t%s\t%s\n",
			s.AccountID, s.Configured, s.Running, s.Connected,
			s.MessageCount, s.ErrorCount, formatWhen(s.LastInboundAt), s.LastError)
	}
	w.Flush()
}

func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
