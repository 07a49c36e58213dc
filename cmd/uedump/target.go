package main

import (
	"fmt"

	"uedump/internal/config"
	"uedump/internal/elfx"
	"uedump/internal/memory"
	"uedump/internal/pipeline"
)

// openTarget builds the address space described by cfg.Target. For an
// image target with a library, the library's architecture replaces the
// configured one.
func openTarget(cfg *config.Config) (pipeline.Target, error) {
	t := cfg.Target
	switch {
	case t.Image != "":
		return openImage(cfg)
	case t.Process != "":
		pid, err := memory.FindProcess(t.Process)
		if err != nil {
			return pipeline.Target{}, err
		}
		return openProcess(pid)
	case t.PID != 0:
		return openProcess(t.PID)
	}
	return pipeline.Target{}, fmt.Errorf("no target: set target.pid, target.process or target.image")
}

func openProcess(pid int) (pipeline.Target, error) {
	proc, err := memory.OpenProcess(pid)
	if err != nil {
		return pipeline.Target{}, err
	}
	return pipeline.Target{Mem: proc, Modules: memory.NewProcModules(pid)}, nil
}

func openImage(cfg *config.Config) (pipeline.Target, error) {
	t := cfg.Target
	if t.ImageBase == 0 {
		return pipeline.Target{}, fmt.Errorf("target.image_base is required with target.image")
	}
	img, err := memory.LoadImage(t.Image, t.ImageBase)
	if err != nil {
		return pipeline.Target{}, err
	}
	lo, hi := img.Bounds()
	size := hi - lo

	if t.Library != "" {
		lib, err := elfx.Open(t.Library)
		if err != nil {
			return pipeline.Target{}, err
		}
		defer lib.Close()
		if err := lib.MapInto(img, t.ImageBase); err != nil {
			return pipeline.Target{}, err
		}
		size = max(size, lib.Span())
		cfg.Target.Arch = string(lib.Arch())
	}

	mods := memory.StaticModules{
		t.Module: {Name: t.Module, Base: t.ImageBase, Size: size},
	}
	return pipeline.Target{Mem: img, Modules: mods}, nil
}
