package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Maksim200738-droid/rockvpn/internal/config"
)

// cli общее состояние команд: флаги корня и ленивое подключение.
type cli struct {
	configPath string
	verbose    bool
	connect    connectFunc
}

func newRootCmd(connect connectFunc) *cobra.Command {
	c := &cli{connect: connect}

	rootCmd := &cobra.Command{
		Use:           "vpnctl",
		Short:         "Администрирование подписок RockVPN",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "путь к конфигу (по умолчанию CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "подробный лог")

	rootCmd.AddCommand(
		newApproveCmd(c),
		newRejectCmd(c),
		newRevokeCmd(c),
		newSweepCmd(c),
		newStatsCmd(c),
		newTokenCmd(c),
	)

	return rootCmd
}

// loadConfig читает .env, если он есть, затем конфиг из флага или CONFIG_PATH.
func (c *cli) loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	path := c.configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return nil, errors.New("config path is not set: use --config or CONFIG_PATH")
	}
	return config.Load(path)
}

// withBackend выполняет fn с подключёнными зависимостями и закрывает их после.
func (c *cli) withBackend(cmd *cobra.Command, fn func(b *backend, cfg *config.Config) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}

	b, err := c.connect(cmd.Context(), cfg, c.logger(cmd))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer b.close()

	return fn(b, cfg)
}

func (c *cli) logger(cmd *cobra.Command) *slog.Logger {
	return newLogger(c.verbose, cmd.ErrOrStderr())
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
