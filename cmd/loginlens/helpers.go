package main

// ---------------------------------------------------------------------------
// helpers.go — TTY/color helpers, error helpers, config/logger bootstrap
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/loginlens-project/loginlens/internal/core"
)

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTTY(os.Stderr)
}

func ansi(code, s string) string {
	if !colorEnabled() {
		return s
	}
	return code + s + "\033[0m"
}

func red(s string) string    { return ansi("\033[91m", s) }
func yellow(s string) string { return ansi("\033[93m", s) }
func green(s string) string  { return ansi("\033[32m", s) }
func dim(s string) string    { return ansi("\033[90m", s) }

// severityColor paints a risk level for terminal output.
func severityColor(level core.RiskLevel) string {
	switch level {
	case core.RiskHigh:
		return red(level.String())
	case core.RiskMedium:
		return yellow(level.String())
	default:
		return green(level.String())
	}
}

func errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, red("error: ")+format+"\n", args...)
	os.Exit(1)
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, yellow("warn: ")+format+"\n", args...)
}

// envConfig returns the config path, preferring flag > env > default.
func envConfig(flagVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if env := os.Getenv("LOGINLENS_CONFIG"); env != "" {
		return env
	}
	return "configs/default.yaml"
}

// loadConfig loads configuration or exits with a readable error.
func loadConfig(path string) *core.Config {
	cfg, err := core.LoadConfig(envConfig(path))
	if err != nil {
		errorf("loading config: %v", err)
	}
	return cfg
}

// newLogger builds a zerolog logger from the logging config.
func newLogger(cfg core.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if strings.EqualFold(cfg.Format, "json") {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()
}

// readInput loads a file argument, or stdin for "-".
func readInput(path string) []byte {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			errorf("reading stdin: %v", err)
		}
		return data
	}
	data, err := os.ReadFile(path)
	if err != nil {
		errorf("reading %s: %v", path, err)
	}
	return data
}
