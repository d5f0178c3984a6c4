package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/relonav/navigator/internal/taxonomy"
)

var taxonomyCmd = &cobra.Command{
	Use:   "taxonomy",
	Short: "Validate and summarize the taxonomy tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		tx, err := taxonomy.Load(cfg.Taxonomy.Path, taxonomy.WorkbookOptions{
			PieSheet:      cfg.Taxonomy.PieSheet,
			SelectorSheet: cfg.Taxonomy.SelectorSheet,
		})
		if err != nil {
			return err
		}

		byCategory := make(map[string]int)
		for _, e := range tx.Entries {
			byCategory[e.Category]++
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "taxonomy: %s\n", cfg.Taxonomy.Path)
		fmt.Fprintf(w, "pie mappings:\t%d\n", len(tx.Entries))
		fmt.Fprintf(w, "pie categories:\t%d\n", len(byCategory))
		fmt.Fprintf(w, "poi selectors:\t%d\n", len(tx.Selectors))
		fmt.Fprintf(w, "poi categories:\t%d\n", len(tx.Categories()))
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(taxonomyCmd)
}
