package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"uitest/internal/directive"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [paths...]",
		Short: "List the selected test cases",
		RunE:  runList,
	}
	cmd.Flags().String("root", "", "test root (overrides [suite].root)")
	cmd.Flags().Bool("dirs", false, "list directories with their case counts instead of cases")
	cmd.Flags().Bool("directives", false, "show the parsed header of every case")
	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return usageError(err)
	}
	if v, _ := cmd.Flags().GetString("root"); v != "" {
		cfg.Suite.Root = absFromCwd(v)
	}
	reg, err := loadSuite(cmd.Context(), cfg, args)
	if err != nil {
		return usageError(err)
	}

	out := cmd.OutOrStdout()
	if dirs, _ := cmd.Flags().GetBool("dirs"); dirs {
		for _, dir := range reg.Dirs() {
			fmt.Fprintf(out, "%s (%d)\n", dir, len(reg.InDirs([]string{dir})))
		}
		return nil
	}

	showDirectives, _ := cmd.Flags().GetBool("directives")
	for _, tc := range reg.All() {
		if !showDirectives {
			fmt.Fprintln(out, tc.ID)
			continue
		}
		if tc.ParseErr != nil {
			fmt.Fprintf(out, "%s\tinvalid: %v\n", tc.ID, tc.ParseErr)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", tc.ID, describe(tc.Parsed))
	}
	fmt.Fprintf(out, "%d test case(s)\n", reg.Len())
	return nil
}

// describe renders the header of a case on one line: mode, edition, flags.
func describe(p *directive.Parsed) string {
	d := p.Directives
	parts := []string{d.Mode.String()}
	if d.Edition != "" {
		parts = append(parts, "edition "+d.Edition)
	}
	if len(d.CompileFlags) > 0 {
		parts = append(parts, "flags "+strings.Join(d.CompileFlags, " "))
	}
	if d.RunRustfix {
		parts = append(parts, "rustfix")
	}
	if len(d.AuxBuilds) > 0 {
		parts = append(parts, "aux "+strings.Join(d.AuxBuilds, ","))
	}
	parts = append(parts, fmt.Sprintf("%d annotation(s)", len(p.Annotations)))
	return strings.Join(parts, "; ")
}
