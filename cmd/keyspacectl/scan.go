package main

import (
	"encoding/hex"

	"github.com/spf13/cobra"

	"github.com/reconbug/treekv/pkg/keyspace"
)

func init() {
	rootCmd.AddCommand(newScanCmd())
}

type scanEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func newScanCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scan <tree> <keyspace> [prefix-hex]",
		Short: "Scan every key in a KeySpace under an optional hex prefix",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix []byte
			if len(args) == 3 {
				decoded, err := hex.DecodeString(args[2])
				if err != nil {
					return err
				}
				prefix = decoded
			}

			return withTree(args[0], func(tree *keyspace.Tree) error {
				count := 0
				var printErr error
				tree.ScanPrefix(args[1], prefix, func(key, val []byte) bool {
					if limit > 0 && count >= limit {
						return false
					}
					count++

					entry := scanEntry{Key: hex.EncodeToString(key), Value: hex.EncodeToString(val)}
					if jsonOut {
						printErr = printJSON(entry)
					} else {
						printInfo("%s  %s\n", entry.Key, entry.Value)
					}
					return printErr == nil
				})
				return printErr
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of entries (0 = all)")
	return cmd
}
