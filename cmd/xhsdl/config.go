package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"xhsdl/pkg/config"
	"xhsdl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage xhsdl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (XHSDL_*, also read from .env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as '.xhsdl.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the configuration resolved from all sources.

The session cookie is masked.`,
	Run: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Run:   runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

const exampleConfig = `# xhsdl configuration file
#
# Environment variables override this file, for example:
# XHSDL_COOKIE, XHSDL_PROXY, XHSDL_OUTPUT_DIR, XHSDL_NATS_URL

browser:
  # Run Chromium without a window
  headless: true
  # Proxy for browser traffic, e.g. http://127.0.0.1:7890
  proxy_url: ""
  # Attach to a running browser (ws://...) instead of launching one
  control_url: ""
  user_agent: ""
  start_url: "https://www.xiaohongshu.com/explore"
  navigation_timeout: 30s

collect:
  # Cycles without a new comment before the feed counts as converged
  empty_cycle_threshold: 5
  # Stop a run after this many records
  max_records: 200
  scroll_delay_min: 2s
  scroll_delay_max: 4s
  expand_delay_min: 1.5s
  expand_delay_max: 2.5s
  end_marker_selector: ".end-container"

batch:
  # Polls for a note to render before it is skipped
  ready_attempts: 10
  ready_interval: 500ms
  # Pause between notes
  item_pause: 2.5s
  skip_comments: false

download:
  timeout: 15s
  workers: 1
  # Pause between image requests
  image_pause: 300ms
  retry_attempts: 1
  skip_videos: false
  asset_hosts: ["xhscdn.com", "sns-img", "sns-webpic"]

output:
  directory: "./downloads"

storage:
  # sqlite or json
  driver: "sqlite"
  path: "./downloads/xhsdl.db"

publish:
  # Leave empty to disable publishing
  nats_url: ""
  subject: "xhsdl.posts"

api:
  addr: "127.0.0.1:8787"

logging:
  # debug, info, warn, error
  level: "info"
  # Also write logs to this file
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = ".xhsdl.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0600); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Run 'xhsdl auth login' to store your session cookie")
	fmt.Println("2. Run 'xhsdl config validate' to check the configuration")
	fmt.Println("3. Start with 'xhsdl note <url>' or 'xhsdl batch <keyword>'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, flagMap(cmd.Flags()))
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	displayCfg := *cfg
	if c := displayCfg.Browser.Cookie; c != "" {
		if len(c) > 8 {
			displayCfg.Browser.Cookie = c[:4] + "..." + c[len(c)-4:]
		} else {
			displayCfg.Browser.Cookie = "***"
		}
	}

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		os.Exit(1)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (XHSDL_*)")
	if configFile != "" {
		fmt.Printf("3. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("3. Configuration file: (searched in default locations)")
	}
	fmt.Println("4. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		home, _ := os.UserHomeDir()
		for _, path := range []string{
			".xhsdl.yaml",
			".xhsdl.yml",
			filepath.Join(home, ".config", "xhsdl", "config.yaml"),
			filepath.Join(home, ".xhsdl.yaml"),
		} {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}
		if configFile == "" {
			ui.PrintError("No configuration file found", "Specify a file with --config flag")
			os.Exit(1)
		}
	}

	ui.PrintInfo("Validating configuration", configFile)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		os.Exit(1)
	}

	var warnings, problems []string
	if cfg.Browser.Cookie == "" {
		warnings = append(warnings, "no session cookie configured (stored accounts are still used)")
	}
	if cfg.Output.Directory != "" {
		if err := os.MkdirAll(cfg.Output.Directory, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create output directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Sprintf("Cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors:", "")
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		os.Exit(1)
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings:", "")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		fmt.Println()
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Output directory: %s\n", cfg.Output.Directory)
	fmt.Printf("  Store: %s (%s)\n", cfg.Storage.Driver, cfg.Storage.Path)
	fmt.Printf("  Empty cycles / max records: %d / %d\n", cfg.Collect.EmptyCycleThreshold, cfg.Collect.MaxRecords)
	fmt.Printf("  Batch pause: %s\n", cfg.Batch.ItemPause)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
