package kv

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value, err := valueSerializer.Serialize(args[1])
			if err != nil {
				return err
			}
			if err := engine.Set([]byte(key), value); err != nil {
				return err
			} else {
				fmt.Println("set successfully")
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			raw, ok, err := engine.Get([]byte(key))
			if err != nil {
				return err
			}
			resp := ""
			if ok {
				if err := valueSerializer.Deserialize(raw, &resp); err != nil {
					// values written by other tools may bypass the serializer
					resp = string(raw)
				}
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if existed, err := engine.Delete([]byte(key)); err != nil {
				return err
			} else {
				fmt.Printf("delete successfully, existed=%v\n", existed)
			}
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks whether a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if ok, err := engine.Contains([]byte(key)); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v\n", key, ok)
			}
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists all keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, key := range engine.Keys() {
				fmt.Println(string(key))
			}
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count",
		Short: "Prints the number of live entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(engine.Count())
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints engine statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats := engine.Stats()
			fmt.Printf("engine:        %s\n", stats.DbType)
			fmt.Printf("live entries:  %d\n", stats.LiveCount)
			fmt.Printf("file length:   %d bytes\n", stats.FileLength)
			fmt.Printf("value bytes:   %d\n", stats.ValueBytes)
			fmt.Printf("index used:    %d of %d bytes\n", stats.IndexUsed, stats.IndexSpace)
			fmt.Printf("reclaimable:   ~%d bytes\n", stats.Reclaimable)
			fmt.Printf("value sizes:   mean=%dB median=%dB p95=%dB\n",
				stats.ValueSizes.Mean, stats.ValueSizes.Median, stats.ValueSizes.P95)
			fmt.Printf("dirty:         %v\n", stats.Dirty)
			return nil
		},
	}
	flushCmd = &cobra.Command{
		Use:   "flush",
		Short: "Forces a durability barrier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := engine.Flush(); err != nil {
				return err
			}
			fmt.Println("flushed successfully")
			return nil
		},
	}
	compactCmd = &cobra.Command{
		Use:   "compact",
		Short: "Rewrites the file keeping only live entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			full, _ := cmd.Flags().GetBool("full")
			before := engine.Stats().FileLength
			if err := engine.Compact(full); err != nil {
				return err
			}
			after := engine.Stats().FileLength
			fmt.Printf("compacted successfully, %d -> %d bytes\n", before, after)
			return nil
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes every entry from the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := engine.Clear(); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
)

func init() {
	compactCmd.Flags().Bool("full", false, "do not reserve index growth headroom")
}
