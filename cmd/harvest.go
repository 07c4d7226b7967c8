// -- cmd/harvest.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/framewalk/internal/browser"
	"github.com/xkilldash9x/framewalk/internal/config"
	"github.com/xkilldash9x/framewalk/internal/engine"
	"github.com/xkilldash9x/framewalk/internal/extract"
	"github.com/xkilldash9x/framewalk/internal/harvest"
	"github.com/xkilldash9x/framewalk/internal/observability"
	"github.com/xkilldash9x/framewalk/internal/route"
	"github.com/xkilldash9x/framewalk/internal/sink"
)

// newHarvestCmd creates and configures the `harvest` command.
func newHarvestCmd() *cobra.Command {
	harvestCmd := &cobra.Command{
		Use:   "harvest",
		Short: "Walks a configured route and extracts its tables into an xlsx artifact",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags to their viper keys so command-line values
			// override the config file and environment with the right
			// precedence.
			if err := viper.BindPFlag("harvest.routes_file", cmd.Flags().Lookup("routes-file")); err != nil {
				return err
			}
			if err := viper.BindPFlag("harvest.output_dir", cmd.Flags().Lookup("output")); err != nil {
				return err
			}
			if err := viper.BindPFlag("harvest.years", cmd.Flags().Lookup("years")); err != nil {
				return err
			}
			return viper.BindPFlag("browser.headless", cmd.Flags().Lookup("headless"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Context passed from main (signal-aware).
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-unmarshal so the flag overrides bound in PreRunE apply.
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}

			routeName, err := cmd.Flags().GetString("route")
			if err != nil {
				return err
			}
			set, err := route.LoadFile(cfg.Harvest.RoutesFile)
			if err != nil {
				return err
			}
			years := cfg.Harvest.Years
			if len(years) == 0 {
				return fmt.Errorf("no partition years configured; set harvest.years or pass --years")
			}

			outDir, err := cfg.OutputDir()
			if err != nil {
				return err
			}
			out, err := sink.NewXLSX(outDir, logger)
			if err != nil {
				return err
			}

			session, err := browser.NewSession(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("starting browser session: %w", err)
			}
			defer session.Quit()

			extractor := extract.New(session, logger)
			walker := engine.NewWalker(session, extractor, logger, set.MainFrame, cfg.Harvest.SettleDelay, cfg.Harvest.MaxAttempts)
			harvester := harvest.New(session, walker, extractor, out, set, logger, cfg.Harvest.MaxAttempts)

			logger.Info("Harvest configured.",
				zap.String("route", routeName),
				zap.Strings("years", years),
				zap.String("output_dir", outDir),
			)
			return harvester.Run(ctx, routeName, years)
		},
	}

	harvestCmd.Flags().String("route", "", "name of the route to harvest (see `framewalk routes`)")
	harvestCmd.Flags().StringSlice("years", nil, "partition years to iterate, in order")
	harvestCmd.Flags().String("routes-file", "", "path to the routes YAML file")
	harvestCmd.Flags().StringP("output", "o", "", "directory artifacts are written to")
	harvestCmd.Flags().Bool("headless", true, "run the browser headless")
	_ = harvestCmd.MarkFlagRequired("route")

	return harvestCmd
}
