//go:build linux

package memory

import (
	"fmt"
	"path/filepath"
	"strings"
	"unsafe"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// Process reads another process's memory with process_vm_readv. The
// target keeps running; every read is a momentary snapshot.
type Process struct {
	pid int
}

// OpenProcess checks the pid exists and returns a reader for it.
func OpenProcess(pid int) (*Process, error) {
	if _, err := procfs.NewProc(pid); err != nil {
		return nil, fmt.Errorf("memory: open process %d: %w", pid, err)
	}
	return &Process{pid: pid}, nil
}

// PID returns the target process id.
func (p *Process) PID() int { return p.pid }

// ReadAt implements Reader.
func (p *Process) ReadAt(buf []byte, addr uint64) error {
	if len(buf) == 0 {
		return nil
	}
	local := []unix.Iovec{{Base: (*byte)(unsafe.Pointer(&buf[0]))}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}

	n, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
	if err != nil {
		return fmt.Errorf("%w: 0x%x: %v", ErrUnmapped, addr, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: 0x%x: short read %d/%d", ErrUnmapped, addr, n, len(buf))
	}
	return nil
}

// FindProcess returns the pid of the first process whose command name or
// first argument matches name.
func FindProcess(name string) (int, error) {
	procs, err := procfs.AllProcs()
	if err != nil {
		return 0, fmt.Errorf("memory: list processes: %w", err)
	}
	for _, p := range procs {
		if comm, err := p.Comm(); err == nil && comm == name {
			return p.PID, nil
		}
		args, err := p.CmdLine()
		if err != nil || len(args) == 0 {
			continue
		}
		if args[0] == name || filepath.Base(args[0]) == name {
			return p.PID, nil
		}
	}
	return 0, fmt.Errorf("memory: process %q not found", name)
}

// ProcModules resolves modules from /proc/<pid>/maps. The maps are
// re-read on every lookup since the target may still be loading.
type ProcModules struct {
	pid int
}

// NewProcModules returns a resolver for pid.
func NewProcModules(pid int) *ProcModules {
	return &ProcModules{pid: pid}
}

func (m *ProcModules) Module(name string) (Module, error) {
	proc, err := procfs.NewProc(m.pid)
	if err != nil {
		return Module{}, fmt.Errorf("memory: proc %d: %w", m.pid, err)
	}
	maps, err := proc.ProcMaps()
	if err != nil {
		return Module{}, fmt.Errorf("memory: proc %d maps: %w", m.pid, err)
	}

	var lo, hi uint64
	for _, pm := range maps {
		// Split APKs map libraries as "base.apk!/lib/<abi>/libX.so".
		if pm.Pathname == "" || !strings.HasSuffix(pm.Pathname, "/"+name) && filepath.Base(pm.Pathname) != name {
			continue
		}
		start, end := uint64(pm.StartAddr), uint64(pm.EndAddr)
		if lo == 0 || start < lo {
			lo = start
		}
		if end > hi {
			hi = end
		}
	}
	if lo == 0 {
		return Module{}, fmt.Errorf("%w: %s in pid %d", ErrModuleNotFound, name, m.pid)
	}
	return Module{Name: name, Base: lo, Size: hi - lo}, nil
}
