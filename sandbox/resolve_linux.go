package sandbox

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// outcome collects everything the supervisor observed about one child.
type outcome struct {
	waitStatus    unix.WaitStatus
	rusage        unix.Rusage
	wall          time.Duration
	watchdogFired bool
	setupErr      string
}

// resolve maps an observed outcome onto the canonical verdict. Rules apply
// in priority order: a setup fault preempts everything, the supervisor's
// own watchdog kill preempts any signal interpretation, and attribution to
// a resource ceiling preempts a generic signal report. SIGSYS is reserved
// to the seccomp filter, so it always means a restricted function.
func resolve(req *Request, out outcome) Verdict {
	if out.setupErr != "" {
		return Verdict{Status: StatusSetupFailed, ExitMsg: out.setupErr}
	}

	wallMS := out.wall.Milliseconds()
	cpuMS := cpuTimeMS(out.rusage)
	memKB := out.rusage.Maxrss
	v := Verdict{DurationMS: wallMS, MemoryKB: memKB}

	// The watchdog flag alone is not proof: the timer can fire in the gap
	// between the child's death and the timer stop. Only a SIGKILL death is
	// the watchdog's own work.
	if out.watchdogFired && out.waitStatus.Signaled() && out.waitStatus.Signal() == unix.SIGKILL {
		v.Status = StatusTimeLimit
		v.ExitMsg = fmt.Sprintf("watchdog killed process group after %dms", wallMS)
		return v
	}

	if out.waitStatus.Signaled() {
		sig := out.waitStatus.Signal()
		name := unix.SignalName(sig)
		switch {
		case sig == unix.SIGXCPU || cpuMS >= req.TimeLimitMS:
			v.Status = StatusTimeLimit
			v.ExitMsg = fmt.Sprintf("WTERMSIG %s: cpu time above %dms", name, req.TimeLimitMS)
		case sig == unix.SIGSYS:
			v.Status = StatusRestricted
			v.ExitMsg = fmt.Sprintf("WTERMSIG %s: syscall outside the %s allowlist", name, req.Phase)
		case sig == unix.SIGXFSZ:
			v.Status = StatusOutputLimit
			v.ExitMsg = fmt.Sprintf("WTERMSIG %s: output above %d bytes", name, req.OutputLimitBytes)
		case (sig == unix.SIGKILL || sig == unix.SIGSEGV) && memKB >= req.MemoryLimitKB:
			v.Status = StatusMemoryLimit
			v.ExitMsg = fmt.Sprintf("WTERMSIG %s: resident memory above %dkb", name, req.MemoryLimitKB)
		default:
			v.Status = StatusSignaled
			v.Signal = name
			v.ExitMsg = fmt.Sprintf("WTERMSIG %d (%s)", int(sig), name)
		}
		return v
	}

	// Normal termination still loses to a blown budget: a program can use
	// up its cpu allowance and exit inside the same scheduling quantum.
	switch {
	case cpuMS > req.TimeLimitMS:
		v.Status = StatusTimeLimit
		v.ExitMsg = fmt.Sprintf("cpu time %dms above limit %dms", cpuMS, req.TimeLimitMS)
	case memKB > req.MemoryLimitKB:
		v.Status = StatusMemoryLimit
		v.ExitMsg = fmt.Sprintf("resident memory %dkb above limit %dkb", memKB, req.MemoryLimitKB)
	default:
		v.Status = StatusExited
		v.ExitMsg = fmt.Sprintf("WIFEXITED with exit code %d", out.waitStatus.ExitStatus())
	}
	return v
}

func cpuTimeMS(ru unix.Rusage) int64 {
	user := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
	sys := time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond
	return (user + sys).Milliseconds()
}
