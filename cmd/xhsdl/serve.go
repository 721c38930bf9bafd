package main

import (
	"github.com/spf13/cobra"

	"xhsdl/internal/api"
	"xhsdl/pkg/ui"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Drive a browser window through a local HTTP API",
	Long: `Launch a browser window at the site home with the stored session cookie and
serve the extraction operations over HTTP. Browse to a note or a search page
in the window, then call:

  GET  /status     current page, active run, accumulated data
  POST /note       extract the open note
  POST /comments   collect the open note's comments
  POST /search     collect the open result page (?scroll=true to scroll)
  POST /batch      process the collected results
  POST /cancel     stop the active run
  GET  /export     CSV of the current note and results
  POST /media      zip the open note's media
  GET  /posts      stored notes
  DELETE /posts    clear the store

The window is headed unless --headless is given.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "listen address (default 127.0.0.1:8787)")
}

func runServe(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.Close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	if !cmd.Flags().Changed("headless") {
		a.cfg.Browser.Headless = false
	}

	s, err := a.launch(ctx, "")
	if err != nil {
		fatal("Failed to launch browser", err)
	}

	ui.PrintInfo("Listening", "http://"+a.cfg.API.Addr)
	if err := api.New(s, a.log).ListenAndServe(ctx, a.cfg.API.Addr); err != nil {
		fatal("Server failed", err)
	}
}
