package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reconbug/treekv/pkg/keyspace"
)

func init() {
	rootCmd.AddCommand(newGetCmd())
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <tree> <keyspace> <key-hex>",
		Short: "Get the raw value stored under a key in a KeySpace",
		Long: `get fetches the raw bytes stored under <key-hex> in the KeySpace
named <keyspace>, inside the physical tree <tree>. Keys are given as hex so
arbitrary binary keys (composite keys, varint-tagged fields) can be passed
on the command line.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := hex.DecodeString(args[2])
			if err != nil {
				return fmt.Errorf("decode key: %w", err)
			}

			return withTree(args[0], func(tree *keyspace.Tree) error {
				val, ok := tree.Get(args[1], key)
				if !ok {
					return fmt.Errorf("key not found")
				}

				if jsonOut {
					return printJSON(map[string]string{"value": hex.EncodeToString(val)})
				}
				printInfo("%s\n", hex.EncodeToString(val))
				return nil
			})
		},
	}
}
