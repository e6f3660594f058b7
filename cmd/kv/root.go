package kv

import (
	"github.com/ValentinKolb/fsKV/cmd/util"
	"github.com/ValentinKolb/fsKV/lib/db"
	"github.com/ValentinKolb/fsKV/lib/db/engines/birch"
	"github.com/ValentinKolb/fsKV/lib/db/registry"
	"github.com/ValentinKolb/fsKV/lib/serializer"
	"github.com/spf13/cobra"
)

var (
	reg             *registry.Registry
	engine          db.Engine
	valueSerializer serializer.IValueSerializer

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations on a local database",
		PersistentPreRunE:  setupEngine,
		PersistentPostRunE: teardownEngine,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the engine configuration flags to the KV command
	util.SetupEngineFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(countCmd)
	KeyValueCommands.AddCommand(statsCmd)
	KeyValueCommands.AddCommand(flushCmd)
	KeyValueCommands.AddCommand(compactCmd)
	KeyValueCommands.AddCommand(clearCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupEngine opens the configured database through a registry rooted at the
// data directory
func setupEngine(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	opts, err := util.GetEngineOptions()
	if err != nil {
		return err
	}

	valueSerializer, err = util.GetSerializer()
	if err != nil {
		return err
	}

	reg, err = registry.New(util.GetDataDir(), func(path string) (db.Engine, error) {
		return birch.Open(path, opts)
	})
	if err != nil {
		return err
	}

	engine, err = reg.Open(util.GetDBName())
	return err
}

// teardownEngine flushes and closes every engine the command touched
func teardownEngine(_ *cobra.Command, _ []string) error {
	if reg == nil {
		return nil
	}
	return reg.CloseAll()
}
