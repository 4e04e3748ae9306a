package main

import (
	"github.com/spf13/cobra"

	"github.com/reconbug/treekv/pkg/query"
	"github.com/reconbug/treekv/pkg/storage"
)

func init() {
	rootCmd.AddCommand(newStatsCmd())
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "List the physical trees opened under the storage directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storageEngine := storage.NewEngine(dbDir)
			defer storageEngine.Close()

			// Touch every domain tree so Trees() reflects the full store,
			// not just whatever happened to be opened already.
			if _, err := query.NewEngine(storageEngine); err != nil {
				return err
			}

			trees := storageEngine.Trees()
			if jsonOut {
				return printJSON(trees)
			}
			for _, name := range trees {
				printInfo("%s\n", name)
			}
			return nil
		},
	}
}
