package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"uitest/internal/config"
)

// addRunFlags registers the flags shared by run and bless.
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("root", "", "test root (overrides [suite].root)")
	cmd.Flags().String("build-dir", "", "scratch and stamp directory (overrides [suite].build_dir)")
	cmd.Flags().String("compiler", "", "compiler binary (overrides [compiler].path and UITEST_COMPILER)")
	cmd.Flags().IntP("jobs", "j", 0, "parallel test cases (0 = GOMAXPROCS)")
	cmd.Flags().Int("max-fix-rounds", 0, "upper bound on fix-and-recompile rounds")
	cmd.Flags().Duration("timeout", 0, "per-invocation compiler timeout")
	cmd.Flags().Bool("coverage", false, "check a .coverage listing for every case")
	cmd.Flags().Bool("force-rerun", false, "ignore stamps and run every selected case")
	cmd.Flags().String("junit", "", "write a JUnit XML report to this file")
	cmd.Flags().String("json", "", "write a canonical JSON report to this file")
	cmd.Flags().String("ui", "", "progress UI (auto|on|off)")
	cmd.Flags().Bool("timings", false, "print per-stage timing totals")
	cmd.Flags().BoolP("verbose", "v", false, "list passing cases too")
}

// loadSettings layers defaults, uitest.toml, the environment and flags, in
// that order.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("root"); v != "" {
		cfg.Suite.Root = absFromCwd(v)
	}
	if v, _ := flags.GetString("build-dir"); v != "" {
		cfg.Suite.BuildDir = absFromCwd(v)
	}
	if v, _ := flags.GetString("compiler"); v != "" {
		if filepath.Base(v) != v {
			v = absFromCwd(v)
		}
		cfg.Compiler.Path = v
	}
	if flags.Changed("jobs") {
		cfg.Run.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("max-fix-rounds") {
		cfg.Run.MaxFixRounds, _ = flags.GetInt("max-fix-rounds")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Compiler.Timeout = config.Duration{Duration: d}
	}
	if v, _ := flags.GetBool("coverage"); v {
		cfg.Suite.Mode = config.ModeCoverage
	}
	if v, _ := flags.GetString("junit"); v != "" {
		cfg.Report.JUnit = absFromCwd(v)
	}
	if v, _ := flags.GetString("json"); v != "" {
		cfg.Report.JSON = absFromCwd(v)
	}
	if v, _ := flags.GetString("ui"); v != "" {
		cfg.Run.UI = v
	}
	if v, _ := flags.GetBool("timings"); v {
		cfg.Report.Timings = true
	}
	if v, _ := cmd.Root().PersistentFlags().GetString("color"); v != "" {
		cfg.Run.Color = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfig reads --config when given, otherwise searches upwards from the
// working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path != "" {
		return config.LoadFile(absFromCwd(path))
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Load(cwd)
}

// absFromCwd делает путь из флага абсолютным относительно рабочей директории,
// а не корня манифеста.
func absFromCwd(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
