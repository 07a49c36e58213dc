package memory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

var (
	ErrModuleNotFound = errors.New("memory: module not found")
	ErrModuleNotReady = errors.New("memory: module not ready")
)

// Module is a loaded image in the target address space.
type Module struct {
	Name string
	Base uint64
	Size uint64
}

// ModuleResolver maps a module file name to its load address.
type ModuleResolver interface {
	Module(name string) (Module, error)
}

// StaticModules is a fixed module table, used with offline images.
type StaticModules map[string]Module

func (s StaticModules) Module(name string) (Module, error) {
	m, ok := s[name]
	if !ok || m.Base == 0 {
		return Module{}, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}
	return m, nil
}

// WaitOptions bounds the readiness poll.
type WaitOptions struct {
	Timeout  time.Duration // total budget; <= 0 means a single attempt
	Interval time.Duration // delay between attempts; default 1s
}

// WaitForModule polls resolver until name is mapped or the timeout
// expires. Expiry is reported as ErrModuleNotReady.
func WaitForModule(ctx context.Context, resolver ModuleResolver, name string, opts WaitOptions) (Module, error) {
	if opts.Timeout <= 0 {
		m, err := resolver.Module(name)
		if err != nil {
			return Module{}, fmt.Errorf("%w: %v", ErrModuleNotReady, err)
		}
		return m, nil
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}

	backoff := retry.WithMaxDuration(opts.Timeout, retry.NewConstant(interval))
	var mod Module
	err := retry.Do(ctx, backoff, func(_ context.Context) error {
		m, err := resolver.Module(name)
		if err != nil {
			return retry.RetryableError(err)
		}
		mod = m
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Module{}, ctxErr
		}
		return Module{}, fmt.Errorf("%w: %s after %s: %v", ErrModuleNotReady, name, opts.Timeout, err)
	}
	return mod, nil
}

// ModuleBytes reads up to max bytes of a module image. Unreadable pages
// end the read early; the returned slice holds what was readable.
func ModuleBytes(r Reader, mod Module, max int) []byte {
	size := mod.Size
	if max > 0 && size > uint64(max) {
		size = uint64(max)
	}
	const page = 4096
	out := make([]byte, 0, size)
	buf := make([]byte, page)
	for off := uint64(0); off < size; off += page {
		n := uint64(page)
		if size-off < n {
			n = size - off
		}
		if err := r.ReadAt(buf[:n], mod.Base+off); err != nil {
			break
		}
		out = append(out, buf[:n]...)
	}
	return out
}
