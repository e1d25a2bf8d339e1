package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"DoeInteligente/internal/config"
	"DoeInteligente/pkg/logger"
)

var (
	cfgFile string
	cfg     config.Config
	log     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "doe-inteligente",
	Short:         "Doe Inteligente API: solicitações de doação, doações parciais e favoritos",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log = logger.New(cfg.Log.Level, cfg.Log.Format)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if log != nil {
			_ = log.Sync()
		}
		return nil
	},
	// без подкоманды запускается HTTP-сервер
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to config file (yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
