package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverrides(t *testing.T) {
	t.Run("Should map only the flags that were set", func(t *testing.T) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.Int("pid", 0, "")
		fs.Uint64("image-base", 0, "")
		fs.Bool("log-json", false, "")
		fs.String("module", "libUE4.so", "")
		fs.Bool("graph", true, "")
		require.NoError(t, fs.Parse([]string{"--pid", "42", "--image-base", "0x70000000", "--log-json", "--graph=false"}))

		got := overrides(fs, map[string]string{
			"pid":        "target.pid",
			"image-base": "target.image_base",
			"log-json":   "log.json",
			"module":     "target.module",
			"graph":      "output.graph",
		})
		assert.Equal(t, map[string]any{
			"target.pid":        42,
			"target.image_base": uint64(0x70000000),
			"log.json":          true,
			"output.graph":      false,
		}, got)
	})

	t.Run("Should ignore flags without a key", func(t *testing.T) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("config", "", "")
		require.NoError(t, fs.Parse([]string{"--config", "a.yaml"}))
		assert.Empty(t, overrides(fs, flagKeys))
	})
}

func TestRootCommands(t *testing.T) {
	var names []string
	for _, c := range rootCmd().Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"dump", "objects", "names", "sizes", "find-class", "graph"})
}
