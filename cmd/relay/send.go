package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DevRickLin/feishu-relay/internal/biz/domain"
	"github.com/DevRickLin/feishu-relay/internal/biz/usecase"
	"github.com/DevRickLin/feishu-relay/internal/conf"
	"github.com/DevRickLin/feishu-relay/internal/data"
	"github.com/DevRickLin/feishu-relay/internal/infra/feishu"
)

func newSendCmd() *cobra.Command {
	var (
		accountID string
		to        string
		card      bool
	)
	cmd := &cobra.Command{
		Use:   "send [text]",
		Short: "Send a message through the outbound sender (reads stdin without text)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if to == "" {
				return fmt.Errorf("--to is required")
			}
			if accountID == "" {
				accountID = cfg.Accounts[0].ID
			}
			acct, ok := cfg.Account(accountID)
			if !ok {
				return fmt.Errorf("unknown account %q", accountID)
			}
			if !acct.Configured() {
				return &conf.ConfigError{Field: accountID, Message: "missing app_id/app_secret"}
			}

			text := ""
			if len(args) == 1 {
				text = args[0]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(b)
			}
			text = strings.TrimSpace(text)
			if text == "" {
				return fmt.Errorf("nothing to send")
			}

			client := feishu.NewClient(feishu.Config{
				AccountID: acct.ID,
				AppID:     acct.AppID,
				AppSecret: acct.AppSecret,
				Domain:    acct.Domain,
				Logger:    logger,
			})
			sender := usecase.NewSender(data.NewFeishuRepo(client), cfg.SenderConfig(), nil, nil, logger)

			ids, err := sender.Deliver(cmd.Context(), to, domain.ReplyPayload{Text: text, PreferCard: card})
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (default: first account)")
	cmd.Flags().StringVar(&to, "to", "", "receive id: chat id (oc_), open id (ou_) or union id (on_)")
	cmd.Flags().BoolVar(&card, "card", false, "prefer an interactive card when cards are enabled")
	return cmd
}
