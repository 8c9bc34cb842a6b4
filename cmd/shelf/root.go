// Command shelf inspects and maintains shelf table files from outside
// the process that writes them. It never interprets cell contents: it
// operates entirely at the file.MappedFile header level (endian tag,
// size, capacity), the same level every table type is built on.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nomasters/shelf/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "shelf",
	Short: "Inspect and maintain shelf table files",
}

func newLogger() logger.Logger {
	l, err := logger.NewWithLevel(logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shelf: invalid --log-level %q: %v\n", logLevel, err)
		os.Exit(1)
	}
	return l
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	rootCmd.AddCommand(inspectCmd, shrinkCmd)
}

// Execute runs the root command; it is the package's only exported
// surface, called from main.
func Execute() error {
	return rootCmd.Execute()
}
