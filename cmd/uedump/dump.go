package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"uedump/internal/pipeline"
)

func dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write the offsets, name and object listings and the SDK",
		Args:  cobra.NoArgs,
		RunE:  runDump,
	}
	cmd.Flags().Bool("graph", true, "write PackageGraph.dot and signature CFGs")
	cmd.Flags().Bool("params", false, "write a parameters header per package")
	return cmd
}

func runDump(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup(cmd, map[string]string{
		"graph":  "output.graph",
		"params": "game.function_parameters",
	})
	if err != nil {
		return err
	}
	target, err := openTarget(cfg)
	if err != nil {
		return err
	}
	p := &pipeline.Pipeline{Cfg: cfg, Target: target, Fs: afero.NewOsFs(), Log: log}
	res, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("SDK written to %s (%d packages, %d missing types)\n", res.Dir, len(res.Packages), res.Missing)
	return nil
}
