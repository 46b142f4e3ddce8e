package policy

import (
	"testing"

	"github.com/elastic/go-seccomp-bpf"

	"sandbox/sandbox"
)

func namesByAction(p seccomp.Policy, action seccomp.Action) map[string]bool {
	names := make(map[string]bool)
	for _, group := range p.Syscalls {
		if group.Action != action {
			continue
		}
		for _, name := range group.Names {
			names[name] = true
		}
		for _, nwc := range group.NamesWithCondtions {
			names[nwc.Name] = true
		}
	}
	return names
}

func TestRunPolicyDefaultsToKill(t *testing.T) {
	p := For(sandbox.PhaseRun)
	if p.DefaultAction != seccomp.ActionKillProcess {
		t.Fatalf("run default action = %v, want kill process", p.DefaultAction)
	}
}

func TestRunPolicyCoversCRuntime(t *testing.T) {
	allowed := namesByAction(For(sandbox.PhaseRun), seccomp.ActionAllow)
	// Regression guard: each of these has broken a benign program when
	// missing (glibc startup, pthread mutexes, getrandom, sleepers).
	for _, name := range []string{
		"read", "write", "writev", "mmap", "mprotect", "munmap", "brk",
		"futex", "getrandom", "rseq", "set_robust_list", "prlimit64",
		"nanosleep", "clock_nanosleep", "exit_group", "execve",
		"open", "openat",
	} {
		if !allowed[name] {
			t.Errorf("run allowlist is missing %s", name)
		}
	}
}

func TestRunPolicyExcludesEscapeHatches(t *testing.T) {
	allowed := namesByAction(For(sandbox.PhaseRun), seccomp.ActionAllow)
	for _, name := range []string{
		"fork", "vfork", "clone", "kill", "ptrace", "socket", "connect",
		"mount", "setrlimit", "chmod", "unlink", "creat",
	} {
		if allowed[name] {
			t.Errorf("run allowlist must not contain %s", name)
		}
	}
}

func TestRunPolicyOpensAreReadOnly(t *testing.T) {
	p := For(sandbox.PhaseRun)
	conditioned := make(map[string][]seccomp.Condition)
	for _, group := range p.Syscalls {
		for _, nwc := range group.NamesWithCondtions {
			conditioned[nwc.Name] = nwc.Conditions
		}
	}
	for name, flagsArg := range map[string]int{"open": 1, "openat": 2} {
		conds, ok := conditioned[name]
		if !ok {
			t.Fatalf("%s must be allowed only under conditions", name)
		}
		if len(conds) != 1 {
			t.Fatalf("%s: expected one condition, got %d", name, len(conds))
		}
		cond := conds[0]
		if cond.Operation != seccomp.BitsNotSet {
			t.Errorf("%s condition operation = %v, want BitsNotSet", name, cond.Operation)
		}
		if int(cond.Argument) != flagsArg {
			t.Errorf("%s condition inspects argument %d, want %d", name, cond.Argument, flagsArg)
		}
		if cond.Value&uint64(writeOpenBits) != uint64(writeOpenBits) {
			t.Errorf("%s condition value %#x does not cover the write bits %#x", name, cond.Value, writeOpenBits)
		}
	}
}

func TestCompilePolicyDeniesHostInterference(t *testing.T) {
	p := For(sandbox.PhaseCompile)
	if p.DefaultAction != seccomp.ActionAllow {
		t.Fatalf("compile default action = %v, want allow", p.DefaultAction)
	}
	killed := namesByAction(p, seccomp.ActionKillProcess)
	for _, name := range []string{"ptrace", "mount", "init_module", "bpf", "chroot", "kexec_load"} {
		if !killed[name] {
			t.Errorf("compile denylist is missing %s", name)
		}
	}
	// The toolchain must still be able to fork its own stages.
	for _, name := range []string{"fork", "vfork", "clone", "execve"} {
		if killed[name] {
			t.Errorf("compile denylist must not contain %s", name)
		}
	}
}

func TestCompilePolicyRefusesSocketsSoftly(t *testing.T) {
	p := For(sandbox.PhaseCompile)
	want := actionErrno(13) // EACCES
	softened := namesByAction(p, want)
	for _, name := range []string{"socket", "connect", "bind"} {
		if !softened[name] {
			t.Errorf("%s should fail with EACCES, not kill", name)
		}
	}
}
