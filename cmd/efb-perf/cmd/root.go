// Package cmd команды утилиты efb-perf для офлайн расчетов посадки и разбора METAR
package cmd

import (
	"fmt"
	"os"

	"github.com/flybeeper/efb-backend/pkg/utils"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	logger   *utils.Logger
)

// rootCmd базовая команда без действия
var rootCmd = &cobra.Command{
	Use:   "efb-perf",
	Short: "Landing performance and METAR tools for the A320 EFB",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = utils.NewLoggerWithOutput(logLevel, "text", cmd.ErrOrStderr())
	},
}

// Execute запускает корневую команду, вызывается из main
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(newLandingCmd())
	rootCmd.AddCommand(newMetarCmd())
}
