// Package cmd defines and implements the CLI commands for the flatwatch
// scraper executable.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/flatwatch/scraper/internal/app"
	"github.com/flatwatch/scraper/internal/logging"
	"github.com/flatwatch/scraper/pkg/config"
)

var cfgFile string

// appKeyType is the context key type for the injected App.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It is a variable so tests can swap in
// a stub container.
var newApp = func(ctx context.Context) (*app.App, error) {
	return app.NewApp(ctx, logging.L)
}

// newRootCmd creates and configures the root command. Services are built in
// PersistentPreRunE, after Viper has loaded the configuration, and torn
// down in PersistentPostRun once the subcommand returns.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flatwatch-scraper",
		Short: "Monitors real-estate listing searches for new items.",
		Long: `flatwatch-scraper periodically re-executes saved listing searches on
supported marketplaces, extracts the results, deduplicates them against
what each watch task has already seen, and persists the new listings.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close(cmd.Context())
			}
		},
	}

	cobra.OnInitialize(func() {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		}
		config.InitConfig()
	})

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ., /etc/flatwatch, $HOME/.flatwatch)")

	cmd.AddCommand(newScrapeCmd())

	return cmd
}

// Execute is the main entry point for the CLI.
func Execute() {
	logging.InitLogger()

	if err := newRootCmd().Execute(); err != nil {
		logging.L.Fatal("command execution failed", zap.Error(err))
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}
