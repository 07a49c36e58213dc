//go:build !linux

package memory

// Process is only available on linux.
type Process struct {
	pid int
}

func OpenProcess(pid int) (*Process, error) { return nil, ErrUnsupported }

func (p *Process) PID() int { return p.pid }

func (p *Process) ReadAt(buf []byte, addr uint64) error { return ErrUnsupported }

func FindProcess(name string) (int, error) { return 0, ErrUnsupported }

// ProcModules is only available on linux.
type ProcModules struct {
	pid int
}

func NewProcModules(pid int) *ProcModules { return &ProcModules{pid: pid} }

func (m *ProcModules) Module(name string) (Module, error) { return Module{}, ErrUnsupported }
