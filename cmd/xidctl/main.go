// Command xidctl operates a transaction ledger: it allocates and finishes
// transactions, inspects, verifies, repairs and backs up the ledger file.
// Without a command it starts an interactive shell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/sushant-115/xidledger/config"
	"github.com/sushant-115/xidledger/pkg/logger"
	"github.com/sushant-115/xidledger/pkg/telemetry"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it.
func run(args []string, stdin io.ReadCloser, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("xidctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	ledgerPath := fs.String("path", "", "ledger base path; the file is <path>.xid (overrides config)")
	create := fs.Bool("create", false, "create the ledger when it does not exist")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	logFormat := fs.String("log-format", "", "log format: json or console (overrides config)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: xidctl [flags] [command [args]]")
		fs.PrintDefaults()
		printHelp(stderr)
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "xidctl: %v\n", err)
		return exitUsage
	}
	if *ledgerPath != "" {
		cfg.Ledger.Path = *ledgerPath
	}
	if *create {
		cfg.Ledger.CreateIfMissing = true
	}
	if *logLevel != "" {
		cfg.Logger.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logger.Format = *logFormat
	}
	if *metricsAddr != "" {
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "xidctl: %v\n", err)
		return exitUsage
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(stderr, "xidctl: %v\n", err)
		return exitFailure
	}
	defer closeLog()

	tel, shutdown, err := telemetry.New(cfg.Telemetry)
	if err != nil {
		log.Error("Telemetry setup failed", zap.Error(err))
		return exitFailure
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()
	if tel.MetricsAddr != "" {
		log.Info("Serving metrics", zap.String("addr", tel.MetricsAddr))
	}

	c := &cli{
		cfg:    cfg,
		log:    log,
		tracer: tel.Tracer,
		meter:  tel.Meter,
		out:    stdout,
	}

	ctx := context.Background()
	var cmdErr error
	if fs.NArg() == 0 || fs.Arg(0) == "shell" {
		cmdErr = c.shell(ctx, stdin)
	} else {
		cmdErr = c.processCommand(ctx, fs.Args())
	}
	if closeErr := c.close(); cmdErr == nil {
		cmdErr = closeErr
	}

	var ue *usageError
	switch {
	case cmdErr == nil:
		return exitOK
	case errors.As(cmdErr, &ue):
		fmt.Fprintf(stderr, "xidctl: %v\n", cmdErr)
		return exitUsage
	default:
		log.Error("Command failed", zap.Error(cmdErr))
		fmt.Fprintf(stderr, "xidctl: %v\n", cmdErr)
		return exitFailure
	}
}
