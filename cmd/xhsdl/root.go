package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"xhsdl/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	noColor       bool
	notifications bool
	quiet         bool
	verbose       bool
	accountName   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xhsdl",
	Short: "Extract 小红书 notes, comments, search results and media",
	Long: `xhsdl drives a Chromium session to extract notes from xiaohongshu.com.

Features:
  - Note details with every top-level comment and reply
  - Search result accumulation with scroll-to-end collection
  - Batch extraction of a whole result list with resumable checkpoints
  - CSV export (Excel friendly, UTF-8 BOM) and media zip archives
  - SQLite or JSON post store, optional NATS publishing
  - A local HTTP API to drive a headed browser session`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetNoColor(true)
		}
		if quiet || logLevel == "error" {
			ui.SetQuietMode(true)
		}
		if verbose && !cmd.Flags().Changed("log-level") {
			logLevel = "debug"
		}
		if cmd.Name() != "version" && cmd.Name() != "help" && cmd.Name() != "completion" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default is .xhsdl.yaml or ~/.config/xhsdl/config.yaml)")
	pf.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&notifications, "notifications", false, "send a desktop notification when a batch ends")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logs and one line per batch item")
	pf.StringVarP(&accountName, "account", "a", "", "use specific stored account")

	pf.Bool("headless", true, "run the browser without a window")
	pf.String("proxy", "", "browser proxy URL")
	pf.String("control-url", "", "attach to a running browser's DevTools URL instead of launching one")
	pf.String("cookie", "", "Cookie header of a logged-in session (overrides stored accounts)")
	pf.StringP("output", "o", "", "output directory for exports and archives")
	pf.String("storage-driver", "", "post store backend (sqlite, json)")
	pf.String("storage-path", "", "post store file")
	pf.String("nats-url", "", "publish every stored post to this NATS server")

	rootCmd.SetVersionTemplate(`xhsdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
