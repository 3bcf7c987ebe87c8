package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "compile":
		return runCompile(args[2:])
	case "deploy":
		return runDeploy(args[2:])
	case "status":
		return runStatus(args[2:])
	case "migrate":
		return runMigrate(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "dropforge"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s compile --claimants <file.csv> --cohorts <file.csv>\n", name)
	fmt.Fprintf(os.Stderr, "  %s deploy --fingerprint <hex>\n", name)
	fmt.Fprintf(os.Stderr, "  %s status --fingerprint <hex>\n", name)
	fmt.Fprintf(os.Stderr, "  %s migrate\n", name)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	return cfg.Build()
}
