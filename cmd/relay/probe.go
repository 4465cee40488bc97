package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DevRickLin/feishu-relay/internal/infra/feishu"
)

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check credentials and resolve the bot identity of every account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, acct := range cfg.Accounts {
				if !acct.Configured() {
					fmt.Fprintf(out, "%s: not configured\n", acct.ID)
					continue
				}
				client := feishu.NewClient(feishu.Config{
					AccountID: acct.ID,
					AppID:     acct.AppID,
					AppSecret: acct.AppSecret,
					Domain:    acct.Domain,
					Logger:    logger,
				})

				ctx, cancel := context.WithTimeout(cmd.Context(), probeTimeout)
				bot, err := client.ProbeBot(ctx)
				cancel()
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: FAILED %v\n", acct.ID, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok bot=%q open_id=%s domain=%s\n",
					acct.ID, bot.Name, bot.OpenID, feishu.ResolveDomain(acct.Domain))
			}
			if failed > 0 {
				return fmt.Errorf("%d account(s) failed the probe", failed)
			}
			return nil
		},
	}
}
