package sandbox

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const (
	defaultStackBytes = 8 << 20
	largeStackBytes   = 256 << 20
	// Slack above the address-space budget: the verdict is decided on
	// Maxrss, the rlimit only stops runaway allocation.
	memorySlackDivisor = 5
	outputSlackBytes   = 1024
)

// applyRlimits installs every resource ceiling in the child. Must run
// before the seccomp filter loads; setrlimit is not on the run allowlist.
// The output budget maps to RLIMIT_FSIZE, so a program exceeding it dies
// with SIGXFSZ rather than having its output silently truncated.
func applyRlimits(req *Request) error {
	cpuSeconds := uint64(req.TimeLimitMS/1000) + 1
	addrSpace := uint64(req.MemoryLimitKB * 1024)
	addrSpace += addrSpace / memorySlackDivisor
	stack := uint64(defaultStackBytes)
	if req.LargeStack {
		stack = largeStackBytes
	}

	limits := []struct {
		name     string
		resource int
		value    uint64
	}{
		{"cpu", unix.RLIMIT_CPU, cpuSeconds},
		{"address space", unix.RLIMIT_AS, addrSpace},
		{"stack", unix.RLIMIT_STACK, stack},
		{"file size", unix.RLIMIT_FSIZE, uint64(req.OutputLimitBytes) + outputSlackBytes},
		{"processes", unix.RLIMIT_NPROC, uint64(req.ProcessLimit)},
		{"core", unix.RLIMIT_CORE, 0},
	}
	for _, l := range limits {
		if err := unix.Setrlimit(l.resource, &unix.Rlimit{Cur: l.value, Max: l.value}); err != nil {
			return fmt.Errorf("setrlimit %s: %w", l.name, err)
		}
	}
	return nil
}
