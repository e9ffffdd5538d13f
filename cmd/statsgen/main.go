// Command statsgen compiles a binary stats schema file into the
// achievements.json and stats.json descriptor files.
//
//	statsgen --schema UserGameStatsSchema_480.bin --out steam_settings/480 [--icons assets] [--dump]
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/assets"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/logging"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/statsgen"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/kv"
)

func main() {
	var (
		schemaPath = pflag.StringP("schema", "s", "", "path to the binary stats schema")
		outDir     = pflag.StringP("out", "o", "", "directory for achievements.json and stats.json")
		iconDir    = pflag.String("icons", "", "directory holding the fallback icons to copy into <out>/img")
		dump       = pflag.Bool("dump", false, "print the decoded schema tree as JSON")
		logLevel   = pflag.String("log-level", "info", "log level")
	)
	pflag.Parse()

	if *schemaPath == "" || (*outDir == "" && !*dump) {
		fmt.Fprintln(os.Stderr, "usage: statsgen --schema FILE (--out DIR | --dump) [--icons DIR]")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	logger, err := logging.New(*logLevel, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "statsgen: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	if err := run(logger, *schemaPath, *outDir, *iconDir, *dump); err != nil {
		logger.Error("statsgen failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, schemaPath, outDir, iconDir string, dump bool) error {
	schema, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}

	if dump {
		tree, err := json.MarshalIndent(kv.Decode(schema), "", "  ")
		if err != nil {
			return fmt.Errorf("rendering schema tree: %w", err)
		}
		fmt.Println(string(tree))
	}

	if outDir == "" {
		return nil
	}

	result, err := statsgen.New(logger).Compile(schema, outDir)
	if err != nil {
		return err
	}

	if iconDir != "" {
		written, err := assets.CopyDefaultIcons(iconDir, outDir, result)
		if err != nil {
			return fmt.Errorf("copying fallback icons: %w", err)
		}
		for _, path := range written {
			logger.Info("fallback icon copied", zap.String("path", path))
		}
	} else if result.CopyDefaultUnlockedImg || result.CopyDefaultLockedImg {
		logger.Warn("descriptors reference fallback icons; pass --icons to copy them",
			zap.Bool("unlocked", result.CopyDefaultUnlockedImg),
			zap.Bool("locked", result.CopyDefaultLockedImg),
		)
	}

	fmt.Printf("%d achievements, %d stats -> %s\n", len(result.Achievements), len(result.Stats), outDir)
	return nil
}
