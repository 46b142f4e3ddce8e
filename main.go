package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"sandbox/language"
	"sandbox/logger"
	"sandbox/policy"
	"sandbox/sandbox"
)

// Exit codes of the engine itself. Child outcomes never surface here; they
// live in the result file.
const (
	exitBadArguments = 2
	exitResultWrite  = 3
)

func main() {
	log := logger.New()

	if dir := os.Getenv("SANDBOX_LANG_DIR"); dir != "" {
		if err := language.LoadDir(dir); err != nil {
			log.Error("load language profiles", zap.String("dir", dir), zap.Error(err))
			_ = log.Sync()
			os.Exit(exitBadArguments)
		}
	}

	req, err := sandbox.ParseRequest(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, sandbox.Usage)
		_ = log.Sync()
		os.Exit(exitBadArguments)
	}

	verdict := sandbox.Run(req, req.Target(), policy.For(req.Phase), log)

	if err := verdict.Write(req.ResultPath); err != nil {
		log.Error("write result", zap.String("path", req.ResultPath), zap.Error(err))
		_ = log.Sync()
		os.Exit(exitResultWrite)
	}
	_ = log.Sync()
}
