package sandbox_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"sandbox/language"
	"sandbox/policy"
	"sandbox/sandbox"
)

// Drives a real child through the whole supervision path: fork, confinement,
// exec, observe-then-sweep-then-reap. The compile-phase policy applies so an
// ordinary system binary can run unprivileged.
func TestRunAdjudicatesRealChild(t *testing.T) {
	target := language.Target{
		Pathname: "/bin/true",
		Envp:     []string{"PATH=/usr/bin:/bin"},
	}
	if _, err := os.Stat(target.Pathname); err != nil {
		t.Skipf("%s not available: %v", target.Pathname, err)
	}

	dir := t.TempDir()
	req := &sandbox.Request{
		Phase:            sandbox.PhaseCompile,
		StdinPath:        "/dev/null",
		StdoutPath:       filepath.Join(dir, "stdout"),
		StderrPath:       filepath.Join(dir, "stderr"),
		TimeLimitMS:      5000,
		MemoryLimitKB:    262144,
		OutputLimitBytes: 1 << 20,
		ProcessLimit:     128,
		ResultPath:       filepath.Join(dir, "result"),
	}

	v := sandbox.Run(req, target, policy.For(req.Phase), zap.NewNop())
	if v.Status != sandbox.StatusExited {
		t.Fatalf("status = %v (%s), want StatusExited", v.Status, v.ExitMsg)
	}
	if !strings.HasPrefix(v.ExitMsg, "WIFEXITED") {
		t.Fatalf("exit_msg %q must start with WIFEXITED", v.ExitMsg)
	}
	if _, err := os.Stat(req.StdoutPath); err != nil {
		t.Fatalf("stdout file not created: %v", err)
	}
}
