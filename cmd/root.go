package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/fsKV/cmd/kv"
	"github.com/ValentinKolb/fsKV/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.1"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "fskv",
		Short: "embedded single-file key-value store",
		Long: fmt.Sprintf(`fsKV (v%s)

An embedded, single-file, persistent key-value store library written in Go,
with pluggable compression, encryption and hashing codecs, incremental index
persistence and atomic compaction.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of fsKV",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("fsKV v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use for values (json, gob, binary)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
