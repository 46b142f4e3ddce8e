// Package sandbox supervises exactly one confined child process per
// invocation: fork, apply confinement, exec the target, wait, resolve.
package sandbox

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/elastic/go-seccomp-bpf"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"sandbox/language"
)

// watchdogGrace is how far past the time limit the watchdog waits before
// killing the process group. CPU-bound programs die earlier via
// RLIMIT_CPU; the watchdog catches sleepers and blocked I/O.
const watchdogGrace = 500 * time.Millisecond

// Run forks one confined child, supervises it to termination and resolves
// the verdict. All confinement happens on the child side of the fork,
// strictly before exec. The setup pipe is the only back-channel: its write
// end is CLOEXEC, so any byte the parent reads from it proves the child
// failed during setup and never ran the target.
func Run(req *Request, target language.Target, pol seccomp.Policy, log *zap.Logger) Verdict {
	var pipeFds [2]int
	if err := unix.Pipe2(pipeFds[:], unix.O_CLOEXEC); err != nil {
		return Verdict{Status: StatusSetupFailed, ExitMsg: fmt.Sprintf("setup pipe: %v", err)}
	}

	start := time.Now()

	// fork(2) duplicates only the calling thread, leaving the child with a
	// torn Go runtime. The child therefore does nothing but confinement
	// setup and exec, all through raw syscalls and small allocations.
	runtime.LockOSThread()
	pid, _, errno := unix.Syscall(unix.SYS_FORK, 0, 0, 0)
	if errno != 0 {
		runtime.UnlockOSThread()
		unix.Close(pipeFds[0])
		unix.Close(pipeFds[1])
		return Verdict{Status: StatusSetupFailed, ExitMsg: fmt.Sprintf("fork: %v", errno)}
	}
	if pid == 0 {
		// Child: never returns on success.
		err := confineAndExec(req, target, pol)
		reportSetupFailure(pipeFds[1], err)
	}
	runtime.UnlockOSThread()

	unix.Close(pipeFds[1])
	childPid := int(pid)

	var watchdogFired atomic.Bool
	budget := time.Duration(req.TimeLimitMS)*time.Millisecond + watchdogGrace
	watchdog := time.AfterFunc(budget, func() {
		watchdogFired.Store(true)
		killGroup(childPid, log)
	})
	defer watchdog.Stop()

	// Observe termination without reaping first: the leader stays a zombie
	// holding the pid and pgid, so the group sweep below can never hit a
	// recycled pid.
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, childPid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			unix.Close(pipeFds[0])
			return Verdict{Status: StatusSetupFailed, ExitMsg: fmt.Sprintf("waitid: %v", err)}
		}
		break
	}
	wall := time.Since(start)
	watchdog.Stop()

	// Any descendants the child forked die with the group.
	_ = unix.Kill(-childPid, unix.SIGKILL)

	var ws unix.WaitStatus
	var ru unix.Rusage
	for {
		_, err := unix.Wait4(childPid, &ws, 0, &ru)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			unix.Close(pipeFds[0])
			return Verdict{Status: StatusSetupFailed, ExitMsg: fmt.Sprintf("wait4: %v", err)}
		}
		break
	}

	verdict := resolve(req, outcome{
		waitStatus:    ws,
		rusage:        ru,
		wall:          wall,
		watchdogFired: watchdogFired.Load(),
		setupErr:      drainSetupPipe(pipeFds[0]),
	})
	log.Info("child adjudicated",
		zap.String("phase", req.Phase.String()),
		zap.String("status", verdict.StatusLine()),
		zap.Int64("duration_ms", verdict.DurationMS),
		zap.Int64("memory_kb", verdict.MemoryKB))
	return verdict
}

// confineAndExec is the child half of the fork. Ordering is load-bearing:
// process group, streams, rlimits, seccomp, exec. The filter forbids the
// setup syscalls themselves, and nothing untrusted runs before exec.
func confineAndExec(req *Request, target language.Target, pol seccomp.Policy) error {
	if err := unix.Setpgid(0, 0); err != nil {
		return fmt.Errorf("setpgid: %w", err)
	}
	// The child must not outlive a crashed supervisor.
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0); err != nil {
		return fmt.Errorf("set pdeathsig: %w", err)
	}
	if err := redirectStreams(req); err != nil {
		return err
	}
	if err := applyRlimits(req); err != nil {
		return err
	}
	if err := seccomp.LoadFilter(seccomp.Filter{
		NoNewPrivs: true,
		Flag:       seccomp.FilterFlagTSync,
		Policy:     pol,
	}); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}

	argv := append([]string{target.Pathname}, target.Argv...)
	if err := unix.Exec(target.Pathname, argv, target.Envp); err != nil {
		return fmt.Errorf("execve %s: %w", target.Pathname, err)
	}
	return nil
}

// redirectStreams wires the child's standard descriptors to the request's
// files. Stdin stays read-only; stdout and stderr are created and
// truncated so a rerun never sees stale bytes.
func redirectStreams(req *Request) error {
	streams := []struct {
		path string
		fd   int
		mode int
	}{
		{req.StdinPath, 0, unix.O_RDONLY},
		{req.StdoutPath, 1, unix.O_WRONLY | unix.O_CREAT | unix.O_TRUNC},
		{req.StderrPath, 2, unix.O_WRONLY | unix.O_CREAT | unix.O_TRUNC},
	}
	for _, s := range streams {
		fd, err := unix.Open(s.path, s.mode, 0644)
		if err != nil {
			return fmt.Errorf("open %s: %w", s.path, err)
		}
		if err := unix.Dup2(fd, s.fd); err != nil {
			return fmt.Errorf("dup2 %s onto fd %d: %w", s.path, s.fd, err)
		}
		if fd != s.fd {
			unix.Close(fd)
		}
	}
	return nil
}

// killGroup terminates the whole child process group; the direct pid is a
// fallback for the window before the child's setpgid call.
func killGroup(pid int, log *zap.Logger) {
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		log.Warn("kill process group", zap.Int("pid", pid), zap.Error(err))
		_ = unix.Kill(pid, unix.SIGKILL)
	}
}

// reportSetupFailure ships the child's pre-exec error to the parent and
// exits. The target is never executed on this path.
func reportSetupFailure(fd int, err error) {
	msg := "unknown setup failure"
	if err != nil {
		msg = err.Error()
	}
	_, _ = unix.Write(fd, []byte(msg))
	unix.Close(fd)
	os.Exit(127)
}

// drainSetupPipe returns the child's setup error, if any. EOF with no
// bytes means exec happened and the program's outcome stands on its own.
func drainSetupPipe(fd int) string {
	defer unix.Close(fd)
	buf := make([]byte, 4096)
	total := 0
	for total < len(buf) {
		n, err := unix.Read(fd, buf[total:])
		if err == unix.EINTR {
			continue
		}
		if n > 0 {
			total += n
		}
		if err != nil || n <= 0 {
			break
		}
	}
	return string(buf[:total])
}
