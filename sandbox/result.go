package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
)

// Status is the canonical outcome of one confined execution.
type Status int

const (
	StatusExited Status = iota
	StatusTimeLimit
	StatusMemoryLimit
	StatusOutputLimit
	StatusRestricted
	StatusSignaled
	StatusSetupFailed
)

// Verdict is the write-once result of an invocation. Duration and memory
// use the same units as the request limits (milliseconds, kibibytes) and
// are zero for setup failures.
type Verdict struct {
	Status     Status
	Signal     string
	ExitMsg    string
	DurationMS int64
	MemoryKB   int64
}

// StatusLine renders the first record of the result file. A death by a
// signal the resolver could not attribute to any limit is reported under
// the signal's own name.
func (v Verdict) StatusLine() string {
	switch v.Status {
	case StatusExited:
		return "Exited Normally"
	case StatusTimeLimit:
		return "Time Limit Exceeded"
	case StatusMemoryLimit:
		return "Memory Limit Exceeded"
	case StatusOutputLimit:
		return "Output Limit Exceeded"
	case StatusRestricted:
		return "Restricted Function"
	case StatusSetupFailed:
		return "Sandbox Setup Failed"
	case StatusSignaled:
		return v.Signal
	}
	return "Unknown"
}

// Write persists the verdict as the fixed four-line record: status,
// exit_msg, duration, memory. The content goes through a temporary file in
// the destination directory and a rename, so a poller waiting on the path
// never observes a partial result. Any pre-existing file is replaced.
func (v Verdict) Write(path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".result-*")
	if err != nil {
		return fmt.Errorf("create result file: %w", err)
	}
	defer os.Remove(tmp.Name())

	// CreateTemp makes the file 0600 and rename keeps that mode; the engine
	// runs privileged while callers read the result as ordinary users.
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod result file: %w", err)
	}

	record := fmt.Sprintf("%s\n%s\n%d\n%d\n", v.StatusLine(), v.ExitMsg, v.DurationMS, v.MemoryKB)
	if _, err := tmp.WriteString(record); err != nil {
		tmp.Close()
		return fmt.Errorf("write result file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close result file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename result file: %w", err)
	}
	return nil
}
