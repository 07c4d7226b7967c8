// -- cmd/routes.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xkilldash9x/framewalk/internal/config"
	"github.com/xkilldash9x/framewalk/internal/route"
)

// newRoutesCmd creates the `routes` command, which lists the navigation
// routes defined in the configured routes file.
func newRoutesCmd() *cobra.Command {
	routesCmd := &cobra.Command{
		Use:   "routes",
		Short: "Lists the routes available in the configured routes file",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return viper.BindPFlag("harvest.routes_file", cmd.Flags().Lookup("routes-file"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			set, err := route.LoadFile(cfg.Harvest.RoutesFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Routes in %s:\n", cfg.Harvest.RoutesFile)
			for _, name := range set.Names() {
				rt := set.Routes[name]
				fmt.Fprintf(out, "  %-28s %d levels -> %s\n", name, len(rt.Levels), rt.Artifact)
			}
			return nil
		},
	}

	routesCmd.Flags().String("routes-file", "", "path to the routes YAML file")
	return routesCmd
}
