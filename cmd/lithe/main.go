package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╦  ╦╔╦╗╦ ╦╔═╗
  ║  ║ ║ ╠═╣║╣
  ╩═╝╩ ╩ ╩ ╩╚═╝
`

func main() {
	rootCmd := &cobra.Command{
		Use:   "lithe",
		Short: "Reactive store server for Go applications",
		Long: `Lithe runs a hub of reactive stores and syncs them to
clients over WebSocket.

Declare stores in lithe.json or register typed ones from code.
Features include:

  • Reactive stores with derived values
  • Batched, atomic writes over a compact wire protocol
  • Session resume with update replay
  • Snapshot persistence (memory, SQLite, Redis, S3)
  • Prometheus metrics and OpenTelemetry tracing`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		snapshotCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// printBanner prints the Lithe ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
