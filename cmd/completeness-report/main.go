package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/app"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/pkg/config"
	"github.com/noah-isme/sma-attendance-api/pkg/logger"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitMissing = 2
)

func main() {
	os.Exit(run())
}

// run executes the report and returns the process exit code. Cleanup is
// deferred here so it completes before main exits.
func run() int {
	var (
		month   string
		from    string
		to      string
		teacher string
		format  string
		timeout time.Duration
	)

	flag.StringVar(&month, "month", "", "Month to evaluate (YYYY-MM), defaults to the current month")
	flag.StringVar(&from, "from", "", "Range start (YYYY-MM-DD), requires -to")
	flag.StringVar(&to, "to", "", "Range end (YYYY-MM-DD), requires -from")
	flag.StringVar(&teacher, "teacher", "", "Restrict the report to one teacher ID")
	flag.StringVar(&format, "format", "table", "Output format: table or json")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	if format != "table" && format != "json" {
		log.Printf("unknown format %q", format)
		return exitFailure
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return exitFailure
	}
	// Reports go to stdout; keep the logger quiet unless asked otherwise.
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.Log.Level = "warn"
	}
	cfg.Monitoring.Enabled = false

	logr, err := logger.New(cfg)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return exitFailure
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	container, err := app.New(ctx, cfg, logr)
	if err != nil {
		logr.Error("failed to initialise dependencies", zap.Error(err))
		return exitFailure
	}
	defer container.Close()

	operator := &models.JWTClaims{UserID: "cli", Role: models.RoleAdmin}
	report, _, err := container.Monitoring.Completeness(ctx, service.CompletenessRequest{
		Month:     month,
		From:      from,
		To:        to,
		TeacherID: teacher,
	}, operator)
	if err != nil {
		fmt.Fprintf(os.Stderr, "completeness report failed: %v\n", err)
		return exitFailure
	}

	if format == "json" {
		err = writeJSON(os.Stdout, report)
	} else {
		err = writeTable(os.Stdout, report)
	}
	if err != nil {
		logr.Error("failed to write report", zap.Error(err))
		return exitFailure
	}
	return exitCode(report)
}
