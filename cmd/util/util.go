package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/fsKV/lib/db/codec"
	"github.com/ValentinKolb/fsKV/lib/db/engines/birch"
	"github.com/ValentinKolb/fsKV/lib/logger"
	"github.com/ValentinKolb/fsKV/lib/serializer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupEngineFlags adds the engine configuration flags to a command
func SetupEngineFlags(cmd *cobra.Command) {
	key := "dir"
	cmd.PersistentFlags().String(key, ".", WrapString("Directory holding the database files"))

	key = "db"
	cmd.PersistentFlags().String(key, "default", WrapString("Name of the database to operate on"))

	key = "compression"
	cmd.PersistentFlags().String(key, "none", WrapString("Compression codec (none, gzip, deflate, brotli, lz4, zstd, snappy, lzma) - fixed at file creation"))

	key = "encryption"
	cmd.PersistentFlags().String(key, "none", WrapString("Encryption cipher (none, aes-256-gcm, chacha20-poly1305) - fixed at file creation"))

	key = "encryption-key"
	cmd.PersistentFlags().String(key, "", WrapString("Encryption passphrase (min 16 characters, required when encryption is enabled)"))

	key = "hash"
	cmd.PersistentFlags().String(key, "xxh3", WrapString("Hash function for integrity stamps - fixed at file creation"))

	key = "update-mode"
	cmd.PersistentFlags().String(key, "append", WrapString("Update policy (append, replace)"))

	key = "write-buffer"
	cmd.PersistentFlags().Int(key, 1024, WrapString("Write buffer size in KB"))

	key = "flush-interval"
	cmd.PersistentFlags().Int(key, 5, WrapString("Background flush interval in seconds (0 disables)"))

	key = "auto-compact"
	cmd.PersistentFlags().Bool(key, false, WrapString("Compact automatically when the dead-byte ratio crosses the threshold"))

	key = "auto-compact-threshold"
	cmd.PersistentFlags().Int(key, 50, WrapString("Dead-byte percentage that triggers auto compaction"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Log level (none, error, warn, info, debug)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("fskv")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetEngineOptions builds engine options from viper configuration
func GetEngineOptions() (*birch.Options, error) {
	opts := birch.DefaultOptions()

	compression, err := codec.ParseCompression(viper.GetString("compression"))
	if err != nil {
		return nil, err
	}
	opts.Compression = compression

	encryption, err := codec.ParseEncryption(viper.GetString("encryption"))
	if err != nil {
		return nil, err
	}
	opts.Encryption = encryption
	opts.EncryptionKey = viper.GetString("encryption-key")

	hash, err := codec.ParseHash(viper.GetString("hash"))
	if err != nil {
		return nil, err
	}
	opts.Hash = hash

	switch viper.GetString("update-mode") {
	case "append":
		opts.FileUpdateMode = birch.UpdateAppend
	case "replace":
		opts.FileUpdateMode = birch.UpdateReplace
	default:
		return nil, fmt.Errorf("invalid update mode %q", viper.GetString("update-mode"))
	}

	opts.WriteBufferKB = viper.GetInt("write-buffer")
	opts.FlushIntervalS = viper.GetInt("flush-interval")
	opts.AutoCompactEnabled = viper.GetBool("auto-compact")
	if t := viper.GetInt("auto-compact-threshold"); t >= 0 && t <= 100 {
		opts.AutoCompactThreshold = uint8(t)
	}

	log := logger.New("birch")
	log.SetLevel(logger.ParseLevel(viper.GetString("log-level")))
	opts.Logger = log

	return opts, nil
}

// GetDataDir retrieves the configured database directory
func GetDataDir() string {
	return viper.GetString("dir")
}

// GetDBName retrieves the configured database name
func GetDBName() string {
	return viper.GetString("db")
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IValueSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.PersistentFlags())
}
