package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reconbug/treekv/pkg/keyspace"
)

func init() {
	rootCmd.AddCommand(newExportCmd())
}

func newExportCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "export <tree> [keyspace] <out-file>",
		Short: "Dump key/value pairs to a file, one hex pair per line",
		Long: `export dumps key/value pairs from <tree> to <out-file>, one hex-encoded
pair per line.

With a <keyspace> argument, it dumps only that KeySpace's entries, tag
stripped. With --all (and no <keyspace> argument), it dumps the entire
physical tree raw, ignoring KeySpace boundaries entirely — the snapshot
form described by the key-space layer's schema-agnostic export.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 3) {
				return fmt.Errorf("export: pass either --all with <tree> <out-file>, or <tree> <keyspace> <out-file>")
			}

			outPath := args[len(args)-1]
			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer out.Close()

			w := bufio.NewWriter(out)
			defer w.Flush()

			return withTree(args[0], func(tree *keyspace.Tree) error {
				count := 0
				var writeErr error
				writeLine := func(key, val []byte) bool {
					_, writeErr = fmt.Fprintf(w, "%s %s\n", hex.EncodeToString(key), hex.EncodeToString(val))
					count++
					return writeErr == nil
				}

				if all {
					tree.ExportAll(writeLine)
				} else {
					tree.Export(args[1], writeLine)
				}
				if writeErr != nil {
					return writeErr
				}
				printVerbose("exported %d entries from %s to %s\n", count, args[0], outPath)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Dump the entire physical tree, ignoring KeySpace boundaries")
	return cmd
}
