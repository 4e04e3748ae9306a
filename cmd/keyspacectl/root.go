package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reconbug/treekv/pkg/keyspace"
	"github.com/reconbug/treekv/pkg/storage"
)

var (
	// Global flags
	dbDir   string
	jsonOut bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "keyspacectl",
	Short: "Inspect and manipulate a treekv store",
	Long: `keyspacectl is a demonstrator for the keyspace layer: it opens a named
tree inside a storage engine directory and lets you get, put, scan, and
export raw key-value pairs tagged under a given KeySpace name.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbDir, "db", "treekv-data", "Base directory for the storage engine")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withTree opens the storage engine rooted at dbDir, binds a keyspace.Tree
// named treeName to it, runs fn, and always closes the storage engine
// afterward.
func withTree(treeName string, fn func(tree *keyspace.Tree) error) error {
	storageEngine := storage.NewEngine(dbDir)
	defer storageEngine.Close()

	printVerbose("opening tree %q under %s\n", treeName, dbDir)

	tree, err := keyspace.Open(storageEngine, treeName, false)
	if err != nil {
		return fmt.Errorf("open tree %q: %w", treeName, err)
	}

	return fn(tree)
}

func printInfo(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
