// Package policy holds the per-phase seccomp allowlists. The tables below
// are the entire policy; nothing mutates them at runtime. An omission here
// breaks benign programs, an extra entry is a sandbox hole.
package policy

import (
	"github.com/elastic/go-seccomp-bpf"
	"golang.org/x/sys/unix"

	"sandbox/sandbox"
)

// runAllowlist is the set of syscalls a confined program may make while
// running: enough for glibc startup, stdio, the dynamic loader,
// mutex/futex synchronization and getrandom. Anything else kills the
// process with SIGSYS. Sleeping must reach the watchdog, hence nanosleep
// and clock_nanosleep; execve loads the target image and is harmless
// without fork or clone.
var runAllowlist = []string{
	"read", "write", "writev", "pread64", "lseek", "close", "fcntl",
	"fstat", "newfstatat", "statx", "access", "faccessat", "readlink",
	"mmap", "mprotect", "munmap", "brk",
	"uname", "sysinfo", "arch_prctl",
	"clock_gettime", "nanosleep", "clock_nanosleep",
	"set_tid_address", "set_robust_list", "rseq", "prlimit64",
	"futex", "getrandom",
	"exit_group",
	"execve",
}

// compileDenylist blocks host interference during compilation. Compilers
// fork their own toolchain stages, so the run allowlist cannot apply;
// instead everything is allowed except what could touch the host.
var compileDenylist = []string{
	"ptrace", "process_vm_readv", "process_vm_writev",
	"mount", "umount2", "pivot_root", "chroot", "setns",
	"init_module", "finit_module", "delete_module",
	"kexec_load", "kexec_file_load", "reboot",
	"swapon", "swapoff", "acct",
	"sethostname", "setdomainname",
	"bpf", "perf_event_open", "userfaultfd",
	"add_key", "request_key", "keyctl",
}

// networkSyscalls fail with EACCES rather than a kill, so toolchain
// components probing for sockets get a clean error instead of a corpse.
var networkSyscalls = []string{
	"socket", "socketpair", "connect", "bind", "listen", "accept", "accept4",
}

// writeOpenBits are the open flags a running program may not request.
const writeOpenBits = unix.O_WRONLY | unix.O_RDWR | unix.O_CREAT

// For returns the seccomp policy for one phase.
func For(phase sandbox.Phase) seccomp.Policy {
	if phase == sandbox.PhaseCompile {
		return seccomp.Policy{
			DefaultAction: seccomp.ActionAllow,
			Syscalls: []seccomp.SyscallGroup{
				{
					Action: seccomp.ActionKillProcess,
					Names:  compileDenylist,
				},
				{
					Action: actionErrno(unix.EACCES),
					Names:  networkSyscalls,
				},
			},
		}
	}

	return seccomp.Policy{
		DefaultAction: seccomp.ActionKillProcess,
		Syscalls: []seccomp.SyscallGroup{
			{
				Action: seccomp.ActionAllow,
				Names:  runAllowlist,
			},
			{
				// Read-only opens only: the dynamic loader needs its
				// libraries, the program gets no way to create or modify
				// files.
				Action: seccomp.ActionAllow,
				NamesWithCondtions: []seccomp.NameWithConditions{
					{
						Name: "open",
						Conditions: []seccomp.Condition{{
							Argument:  1,
							Operation: seccomp.BitsNotSet,
							Value:     uint64(writeOpenBits),
						}},
					},
					{
						Name: "openat",
						Conditions: []seccomp.Condition{{
							Argument:  2,
							Operation: seccomp.BitsNotSet,
							Value:     uint64(writeOpenBits),
						}},
					},
				},
			},
		},
	}
}

func actionErrno(errno unix.Errno) seccomp.Action {
	return seccomp.Action(uint32(seccomp.ActionErrno) | uint32(errno)&0xffff)
}
