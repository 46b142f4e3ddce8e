package sandbox

import (
	"fmt"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"

	"sandbox/language"
)

// Phase selects which target runs and which syscall policy confines it.
type Phase int

const (
	PhaseRun Phase = iota
	PhaseCompile
)

func (p Phase) String() string {
	if p == PhaseCompile {
		return "compile"
	}
	return "run"
}

// Request is one validated execution request. It is immutable for the
// lifetime of the invocation; the result file is the only durable output.
type Request struct {
	Language         language.Language
	Phase            Phase
	StdinPath        string
	StdoutPath       string
	StderrPath       string
	TimeLimitMS      int64
	MemoryLimitKB    int64
	LargeStack       bool
	OutputLimitBytes int64
	ProcessLimit     int64
	ResultPath       string
}

// Target returns the program image for the request's phase.
func (r *Request) Target() language.Target {
	if r.Phase == PhaseCompile {
		return r.Language.Compile
	}
	return r.Language.Run
}

// Usage describes the fixed positional contract.
const Usage = "usage: sandbox <lang_id> <compile:0|1> <stdin> <stdout> <stderr> " +
	"<time_ms> <memory_kb> <large_stack:0|1> <output_bytes> <proc_limit> <result>"

// ParseRequest validates the positional argument list. The only filesystem
// access is a writability probe of the destination directories; a request
// that fails here produces no child and no result file.
func ParseRequest(args []string) (*Request, error) {
	if len(args) != 11 {
		return nil, fmt.Errorf("expected 11 arguments, got %d", len(args))
	}

	for i, name := range []string{
		"language id", "compile flag", "stdin path", "stdout path", "stderr path",
		"time limit", "memory limit", "large stack flag", "output limit",
		"process limit", "result path",
	} {
		if args[i] == "" {
			return nil, fmt.Errorf("%s must not be empty", name)
		}
	}

	langID, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("language id %q: %w", args[0], err)
	}
	lang, err := language.Lookup(langID)
	if err != nil {
		return nil, err
	}

	compile, err := parseBoolFlag("compile flag", args[1])
	if err != nil {
		return nil, err
	}
	largeStack, err := parseBoolFlag("large stack flag", args[7])
	if err != nil {
		return nil, err
	}

	timeLimit, err := parsePositive("time limit", args[5])
	if err != nil {
		return nil, err
	}
	memoryLimit, err := parsePositive("memory limit", args[6])
	if err != nil {
		return nil, err
	}
	outputLimit, err := parsePositive("output limit", args[8])
	if err != nil {
		return nil, err
	}
	processLimit, err := parsePositive("process limit", args[9])
	if err != nil {
		return nil, err
	}

	req := &Request{
		Language:         lang,
		Phase:            PhaseRun,
		StdinPath:        args[2],
		StdoutPath:       args[3],
		StderrPath:       args[4],
		TimeLimitMS:      timeLimit,
		MemoryLimitKB:    memoryLimit,
		LargeStack:       largeStack,
		OutputLimitBytes: outputLimit,
		ProcessLimit:     processLimit,
		ResultPath:       args[10],
	}
	if compile {
		req.Phase = PhaseCompile
	}

	for _, dest := range []string{req.StdoutPath, req.StderrPath, req.ResultPath} {
		if err := checkWritableDir(filepath.Dir(dest)); err != nil {
			return nil, err
		}
	}
	return req, nil
}

func parseBoolFlag(name, raw string) (bool, error) {
	switch raw {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, fmt.Errorf("%s must be 0 or 1, got %q", name, raw)
}

func parsePositive(name, raw string) (int64, error) {
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, raw, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", name, value)
	}
	return value, nil
}

func checkWritableDir(dir string) error {
	if err := unix.Access(dir, unix.W_OK); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	return nil
}
