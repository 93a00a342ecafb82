package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"uitest/internal/version"
)

// newRootCmd builds the command tree. Tests build a fresh tree per case.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "uitest",
		Short:         "Compiler UI test harness",
		Long:          `uitest compiles test sources, checks diagnostics against inline annotations and golden fixtures, and regenerates fixtures on request`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newBlessCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Глобальные флаги
	rootCmd.PersistentFlags().String("color", "", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().String("config", "", "path to uitest.toml (default: search upwards from the working directory)")
	rootCmd.PersistentFlags().String("trace", "", "trace output file (\"-\" for stderr)")
	rootCmd.PersistentFlags().String("trace-level", "off", "trace level (off|error|phase|detail|debug)")
	rootCmd.PersistentFlags().String("trace-format", "auto", "trace format (auto|text|ndjson)")
	rootCmd.PersistentFlags().String("cpu-profile", "", "write a CPU profile of the harness to this file")
	rootCmd.PersistentFlags().String("mem-profile", "", "write a heap profile of the harness to this file")
	rootCmd.PersistentFlags().String("runtime-trace", "", "write a Go runtime trace of the harness to this file")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})
	return rootCmd
}

// main runs the CLI. Test failures exit with 1, usage and configuration
// errors with 2.
func main() {
	os.Exit(execute(newRootCmd(), os.Args[1:]))
}

func execute(rootCmd *cobra.Command, args []string) int {
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "uitest: %v\n", exitErr.Err)
		}
		return exitErr.Code
	}
	// ошибки разбора аргументов cobra возвращает без обёртки
	fmt.Fprintf(rootCmd.ErrOrStderr(), "uitest: %v\n", err)
	return exitUsage
}

// isTerminal проверяет, является ли файл терминалом
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
