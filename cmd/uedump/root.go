package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"uedump/internal/config"
	"uedump/internal/logger"
)

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "uedump",
		Short:         "Reconstruct a C++ SDK from a running Unreal Engine runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := root.PersistentFlags()
	f.StringP("config", "c", "", "YAML configuration file")
	f.Int("pid", 0, "target process id")
	f.String("process", "", "target process name")
	f.String("image", "", "raw memory image instead of a live process")
	f.Uint64("image-base", 0, "address the image is mapped at")
	f.String("library", "", "engine library on disk, mapped into the image for signature scans")
	f.String("module", "", "engine module name (default libUE4.so)")
	f.StringP("out", "o", "", "output root directory")
	f.String("log-level", "", "debug, info, warn or error")
	f.Bool("log-json", false, "log as JSON")

	root.AddCommand(
		dumpCmd(),
		objectsCmd(),
		namesCmd(),
		sizesCmd(),
		findClassCmd(),
		graphCmd(),
	)
	return root
}

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"pid":        "target.pid",
	"process":    "target.process",
	"image":      "target.image",
	"image-base": "target.image_base",
	"library":    "target.library",
	"module":     "target.module",
	"out":        "output.dir",
	"log-level":  "log.level",
	"log-json":   "log.json",
}

// overrides collects the flags the user set, keyed by configuration
// path. Unset flags never override file or environment values.
func overrides(flags *pflag.FlagSet, keys map[string]string) map[string]any {
	out := make(map[string]any)
	flags.Visit(func(fl *pflag.Flag) {
		key, ok := keys[fl.Name]
		if !ok {
			return
		}
		switch fl.Value.Type() {
		case "int":
			v, _ := flags.GetInt(fl.Name)
			out[key] = v
		case "uint64":
			v, _ := flags.GetUint64(fl.Name)
			out[key] = v
		case "bool":
			v, _ := flags.GetBool(fl.Name)
			out[key] = v
		default:
			out[key] = fl.Value.String()
		}
	})
	return out
}

// setup loads the configuration and builds the console logger.
func setup(cmd *cobra.Command, extra map[string]string) (*config.Config, logger.Logger, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	keys := flagKeys
	if len(extra) > 0 {
		keys = make(map[string]string, len(flagKeys)+len(extra))
		for k, v := range flagKeys {
			keys[k] = v
		}
		for k, v := range extra {
			keys[k] = v
		}
	}
	cfg, err := config.Load(path, overrides(cmd.Flags(), keys))
	if err != nil {
		return nil, nil, err
	}
	log := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		Output:     os.Stderr,
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})
	return cfg, log, nil
}

func requireArg(args []string, what string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("expected one %s argument", what)
	}
	return args[0], nil
}
