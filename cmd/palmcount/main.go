package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/palmcount/internal/config"
	"github.com/ironsheep/palmcount/internal/logging"
	"github.com/ironsheep/palmcount/internal/ocr"
	"github.com/ironsheep/palmcount/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error
}

var commands = []command{
	{"detect", "Detect and annotate palm fruit bunches in a folder of photos", runDetect},
	{"collage", "Tile the results of a run into the next collage file", runCollage},
	{"audit", "Read the count labels of a run back and compare them with the record", runAudit},
	{"history", "List recorded runs or summarize one", runHistory},
	{"serve", "Serve the pipeline as MCP tools over stdin/stdout", runServe},
}

func main() {
	if len(os.Args) < 2 {
		printHelp()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		printVersion()
		return
	case "--help", "-h", "help":
		printHelp()
		return
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == os.Args[1] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		printHelp()
		os.Exit(1)
	}

	envFile := os.Getenv(config.EnvPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	cfg, err := config.Load(envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "palmcount: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "palmcount: %v\n", err)
		os.Exit(1)
	}
	server.Version = Version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = cmd.run(ctx, cfg, log, os.Args[2:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.WithError(err).Errorf("%s failed", cmd.name)
		stop()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("palmcount %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	if info := ocr.Info(); info.Available {
		fmt.Printf("  Tesseract:  %s\n", info.Version)
	} else {
		fmt.Printf("  Tesseract:  unavailable\n")
	}
}

func printHelp() {
	fmt.Println("palmcount - count palm fruit bunches in field photos")
	fmt.Println()
	fmt.Println("Usage: palmcount <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, c := range commands {
		fmt.Printf("  %-10s %s\n", c.name, c.summary)
	}
	fmt.Printf("  %-10s %s\n", "version", "Print version information")
	fmt.Printf("  %-10s %s\n", "help", "Print this help message")
	fmt.Println()
	fmt.Println("Run 'palmcount <command> -h' for the flags of a command.")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  PALMCOUNT_ENV_FILE=.env        File of PALMCOUNT_* settings to load first")
	fmt.Println("  PALMCOUNT_LOG_LEVEL=debug      Enable debug logging")
	fmt.Println("  PALMCOUNT_DB_PATH=history.db   Record runs for audit and history")
	fmt.Println()
	fmt.Println("Logs go to stderr; 'serve' speaks MCP on stdin/stdout.")
}
