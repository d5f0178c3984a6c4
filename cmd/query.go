package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/relonav/navigator/internal/navigator"
)

var (
	queryRadius     float64
	queryCategories []string
	queryElevation  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <address>",
	Short: "Run one relocation query and print the result as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initNavigator()
		if err != nil {
			return err
		}
		defer env.Close()

		q := navigator.Query{
			Address:       strings.Join(args, " "),
			RadiusMeters:  queryRadius,
			Categories:    queryCategories,
			WithElevation: queryElevation,
		}

		summary, err := env.nav.Run(cmd.Context(), q)
		if err != nil {
			return err
		}

		payload := navigator.BuildPayload(summary, env.tx)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	},
}

func init() {
	queryCmd.Flags().Float64Var(&queryRadius, "radius", 0, "catchment radius in meters (default from config)")
	queryCmd.Flags().StringSliceVar(&queryCategories, "categories", nil, "POI categories to report (default all)")
	queryCmd.Flags().BoolVar(&queryElevation, "elevation", false, "annotate street grades from the elevation service")
	rootCmd.AddCommand(queryCmd)
}
