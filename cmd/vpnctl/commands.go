package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/Maksim200738-droid/rockvpn/internal/config"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/jwt"
	"github.com/Maksim200738-droid/rockvpn/internal/lib/report"
	lifecycle "github.com/Maksim200738-droid/rockvpn/internal/services/lifecycle"
)

func newApproveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "approve <transaction-id>",
		Short: "Подтвердить оплату и выдать подписку",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(b *backend, _ *config.Config) error {
				activation, err := b.lifecycle.Approve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				sub := activation.Subscription
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Approved %s: subscription %d for user %d until %s\n%s\n",
					args[0], sub.ID, sub.UserID, sub.EndDate.Format(time.DateTime), activation.Descriptor)
				return nil
			})
		},
	}
}

func newRejectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <transaction-id>",
		Short: "Отклонить оплату",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withBackend(cmd, func(b *backend, _ *config.Config) error {
				tx, err := b.lifecycle.Reject(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s (user %d)\n", tx.ID, tx.UserID)
				return nil
			})
		},
	}
}

func newRevokeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <subscription-id>",
		Short: "Отозвать подписку и удалить клиента в панели",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withBackend(cmd, func(b *backend, _ *config.Config) error {
				if err := b.lifecycle.Revoke(cmd.Context(), id, lifecycle.ReasonAdmin); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Revoked subscription %d\n", id)
				return nil
			})
		},
	}
}

func newSweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Один проход снятия истёкших подписок",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(cmd, func(b *backend, _ *config.Config) error {
				res := b.sweeper.SweepOnce(cmd.Context())
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "checked: %d, expired: %d, revoked: %d, failed: %d\n",
					res.Checked, res.Expired, res.Revoked, res.Failed)
				if res.Failed > 0 {
					return fmt.Errorf("%d subscriptions were not revoked", res.Failed)
				}
				return nil
			})
		},
	}
}

func newStatsCmd(c *cli) *cobra.Command {
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Сводная статистика",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withBackend(cmd, func(b *backend, _ *config.Config) error {
				stats, err := b.lifecycle.Stats(cmd.Context())
				if err != nil {
					return err
				}

				if xlsxPath != "" {
					f, err := os.Create(xlsxPath)
					if err != nil {
						return fmt.Errorf("create report: %w", err)
					}
					defer f.Close()
					if err := report.WriteStats(f, stats, b.lifecycle.Tariffs(), time.Now()); err != nil {
						return err
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", xlsxPath)
					return nil
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "users: %d (today: %d)\n", stats.TotalUsers, stats.NewUsersToday)
				_, _ = fmt.Fprintf(out, "active subscriptions: %d\n", stats.ActiveSubscriptions)
				_, _ = fmt.Fprintf(out, "revenue: %s\n", stats.Revenue.StringFixed(2))
				for _, id := range sortedKeys(stats.PaymentsByTariff) {
					_, _ = fmt.Fprintf(out, "payments %s: %d\n", id, stats.PaymentsByTariff[id])
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "записать отчёт в xlsx-файл")

	return cmd
}

func newTokenCmd(c *cli) *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Выпустить JWT для клиента API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			token, err := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL).GenerateToken(args[0], role)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", jwt.RoleBot, "роль: bot или admin")

	return cmd
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
