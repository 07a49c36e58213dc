package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/zboralski/lattice/render"

	"uedump/internal/config"
	"uedump/internal/depgraph"
	"uedump/internal/dump"
	"uedump/internal/generator"
	"uedump/internal/logger"
	"uedump/internal/pipeline"
	"uedump/internal/sdk"
)

// attach loads the configuration and initializes the stores of the
// target without generating anything.
func attach(cmd *cobra.Command) (*config.Config, *pipeline.Session, logger.Logger, error) {
	cfg, log, err := setup(cmd, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	target, err := openTarget(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := pipeline.Attach(cmd.Context(), cfg, target)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, s, log, nil
}

func objectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objects",
		Short: "List the object table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, _, err := attach(cmd)
			if err != nil {
				return err
			}
			return dump.Objects(cmd.OutOrStdout(), s.Objects.Address(), s.Objects.All())
		},
	}
}

func namesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "names",
		Short: "List the name table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, s, _, err := attach(cmd)
			if err != nil {
				return err
			}
			return dump.Names(cmd.OutOrStdout(), s.Names.Address(), s.Names.All())
		},
	}
}

func sizesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sizes [package]",
		Short: "List class sizes of a package (default: the core package)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, log, err := attach(cmd)
			if err != nil {
				return err
			}
			pkg := cfg.Output.CorePackage
			if len(args) == 1 {
				pkg = args[0]
			}
			n, err := dump.CoreSizes(cmd.OutOrStdout(), s.Objects.All(), pkg)
			if err != nil {
				return err
			}
			if n == 0 {
				log.Warn("No classes found", "package", pkg)
			}
			return nil
		},
	}
}

func findClassCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "find-class <full name>",
		Short:   "Look up a class by full name",
		Example: `  uedump find-class "Class CoreUObject.Object" --pid 1234`,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := requireArg(args, "full name")
			if err != nil {
				return err
			}
			_, s, _, err := attach(cmd)
			if err != nil {
				return err
			}
			cls, err := s.Objects.FindClass(name)
			if err != nil {
				return err
			}
			w := bufio.NewWriter(cmd.OutOrStdout())
			fmt.Fprintf(w, "%s\n", cls.FullName())
			fmt.Fprintf(w, "  address: 0x%X\n", cls.Address())
			fmt.Fprintf(w, "  index:   %d\n", cls.Index())
			fmt.Fprintf(w, "  size:    0x%X\n", cls.PropertySize())
			if super := cls.Super(); super.IsValid() {
				fmt.Fprintf(w, "  super:   %s\n", super.FullName())
			}
			return w.Flush()
		},
	}
}

func graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the package dependency graph as DOT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, s, log, err := attach(cmd)
			if err != nil {
				return err
			}
			// Extraction writes package units; keep them in memory while
			// replacement basic units are still read from disk.
			fs := afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(afero.NewOsFs()), afero.NewMemMapFs())
			gen := generator.New(cfg, fs)
			if err := gen.Initialize(cmd.Context()); err != nil {
				return err
			}
			ext := &sdk.Extractor{Gen: gen, Fs: fs, SDKDir: "/" + sdk.SDKDirName, Log: log}
			ex, err := ext.Extract(s.Objects.All())
			if err != nil {
				return err
			}
			sorted := sdk.SortPackages(ex.Packages, ex.Registry)
			for _, cycle := range sorted.Cycles {
				log.Warn("Package dependency cycle", "packages", cycle)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), render.DOT(depgraph.Packages(sorted.Packages, ex.Registry), "packages"))
			return err
		},
	}
}
