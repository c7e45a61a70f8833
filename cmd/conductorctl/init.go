package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// initConfig mirrors the few fields a fresh install needs to get right on
// disk; conductord's own internal/common/config layers viper defaults,
// this file, and CONDUCTOR_* env vars on top of whatever init writes here.
type initConfig struct {
	Store struct {
		HomeDir string `yaml:"homeDir"`
	} `yaml:"store"`
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the conductor home directory and a default config file",
	Long: `init creates <home>/repos, <home>/workspaces, and <home>/.conductor-app/archive,
and writes <home>/config.yaml if one does not already exist. It does not
start conductord or touch the registry database -- that happens lazily the
first time conductord opens it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home := expandHome(homeDir)
		dirs := []string{
			home,
			filepath.Join(home, "repos"),
			filepath.Join(home, "workspaces"),
			filepath.Join(home, ".conductor-app", "archive"),
		}
		for _, d := range dirs {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return fmt.Errorf("create %s: %w", d, err)
			}
		}

		configPath := filepath.Join(home, "config.yaml")
		wroteConfig := false
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			cfg := initConfig{}
			cfg.Store.HomeDir = home
			b, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal default config: %w", err)
			}
			if err := os.WriteFile(configPath, b, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", configPath, err)
			}
			wroteConfig = true
		}

		if jsonOutput {
			return printJSON(map[string]any{"home": home, "config_path": configPath, "config_written": wroteConfig})
		}
		fmt.Printf("%s conductor home ready at %s\n", color.GreenString("✓"), home)
		if wroteConfig {
			fmt.Printf("  wrote %s\n", configPath)
		} else {
			fmt.Printf("  %s already exists, left untouched\n", configPath)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
