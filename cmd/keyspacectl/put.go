package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reconbug/treekv/pkg/keyspace"
)

func init() {
	rootCmd.AddCommand(newPutCmd())
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <tree> <keyspace> <key-hex> <value-hex>",
		Short: "Store a raw key/value pair in a KeySpace",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := hex.DecodeString(args[2])
			if err != nil {
				return fmt.Errorf("decode key: %w", err)
			}
			val, err := hex.DecodeString(args[3])
			if err != nil {
				return fmt.Errorf("decode value: %w", err)
			}

			return withTree(args[0], func(tree *keyspace.Tree) error {
				_, _, err := tree.Insert(args[1], key, val)
				return err
			})
		},
	}
}
