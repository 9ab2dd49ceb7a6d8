package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

const (
	logFormatText = "text"
	logFormatJSON = "json"
)

type globalOptions struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	global := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "graph-loadgen",
		Short:         "Phased, concurrent load generator for graph stores",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&global.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&global.logFormat, "log-format", logFormatText, "Log format: text or json")

	rootCmd.AddCommand(newRunCmd(global), newPlanCmd())

	return rootCmd
}

// handler builds the slog handler selected by the global flags.
func (g *globalOptions) handler(w io.Writer) (slog.Handler, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", g.logLevel, err)
	}

	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(g.logFormat) {
	case logFormatText:
		return slog.NewTextHandler(w, opts), nil
	case logFormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q, want text or json", g.logFormat)
	}
}
