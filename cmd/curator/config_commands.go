package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigCheckCommand(ctx))
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := initTarget(targetPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("%s exists; pass --overwrite to replace it", target)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("stat %s: %w", target, err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sample configuration written to %s\nAdd your tasks, then run `curator config check`.\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Where to write the file (default: the standard config location)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func initTarget(flag string) (string, error) {
	if flag = strings.TrimSpace(flag); flag == "" {
		return config.DefaultConfigPath()
	}
	return config.ExpandPath(flag)
}

func newConfigCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and every task's plugin settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			reg, err := ctx.registry()
			if err != nil {
				return err
			}
			var problems []string
			for _, name := range cfg.TaskNames() {
				if _, err := reg.Resolve(name, cfg.Tasks[name].Plugins); err != nil {
					problems = append(problems, err.Error())
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			for _, p := range problems {
				fmt.Fprintf(out, "  %s\n", p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d task(s) failed validation", len(problems))
			}
			fmt.Fprintf(out, "Configuration valid (%d tasks)\n", len(cfg.Tasks))
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List configured tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(cfg.Tasks))
			for _, name := range cfg.TaskNames() {
				t := cfg.Tasks[name]
				schedule := "-"
				if t.ScheduleInterval > 0 {
					schedule = t.ScheduleInterval.String()
				}
				plugins := make([]string, 0, len(t.Plugins))
				for plugin := range t.Plugins {
					plugins = append(plugins, plugin)
				}
				slices.Sort(plugins)
				rows = append(rows, []string{
					name,
					strconv.Itoa(t.Priority),
					schedule,
					strconv.Itoa(cfg.MaxReruns(name)),
					yesNo(!t.Disabled),
					strings.Join(plugins, ", "),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			fmt.Fprintf(out, "History: %s\n", cfg.DatabasePath())
			fmt.Fprintln(out, renderTable(out,
				[]string{"Task", "Priority", "Schedule", "Max reruns", "Enabled", "Plugins"},
				rows,
				1, 2, 3,
			))
			return nil
		},
	}
}
