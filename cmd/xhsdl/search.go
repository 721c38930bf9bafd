package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"xhsdl/pkg/checkpoint"
	"xhsdl/pkg/models"
	"xhsdl/pkg/scraper"
	"xhsdl/pkg/ui"
)

var (
	searchScroll  bool
	batchScroll   bool
	batchLimit    int
	batchResume   bool
	forceRestart  bool
	skipComments  bool
	searchHTMLDoc string
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Collect the notes of a keyword search",
	Long: `Open the search result page of a keyword and collect its note cards.
With --scroll the feed is scrolled until it ends or stops growing.`,
	Example: `  xhsdl search 穿搭
  xhsdl search 穿搭 --scroll --max-records 100`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <keyword>",
	Short: "Extract every note of a keyword search",
	Long: `Collect the search results of a keyword, then open each note in turn,
extract it with its comments, store it and go back to the list.

Progress is checkpointed per keyword: an interrupted batch skips the notes it
already processed on the next run. Use --force-restart to start over.`,
	Example: `  xhsdl batch 穿搭 --limit 20
  xhsdl batch 穿搭 --skip-comments
  xhsdl batch 穿搭 --force-restart`,
	Args: cobra.ExactArgs(1),
	Run:  runBatch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(batchCmd)

	for _, c := range []*cobra.Command{searchCmd, batchCmd} {
		c.Flags().Int("max-records", 0, "stop scrolling after this many records")
		c.Flags().Int("threshold", 0, "empty cycles before the feed counts as converged")
	}
	searchCmd.Flags().BoolVar(&searchScroll, "scroll", false, "scroll the result feed to its end")
	searchCmd.Flags().StringVar(&searchHTMLDoc, "html", "", "read a saved result page instead of launching a browser")
	searchCmd.Flags().BoolVar(&noExport, "no-export", false, "do not write a CSV file")

	batchCmd.Flags().BoolVar(&batchScroll, "scroll", true, "scroll the result feed before processing")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "process at most this many notes")
	batchCmd.Flags().BoolVar(&batchResume, "resume", true, "skip notes processed by an interrupted run")
	batchCmd.Flags().BoolVar(&forceRestart, "force-restart", false, "discard the checkpoint and start over")
	batchCmd.Flags().BoolVar(&skipComments, "skip-comments", false, "do not collect comments")
}

func runSearch(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.Close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := a.session(ctx, SearchURL(args[0]), searchHTMLDoc)
	if err != nil {
		fatal("Failed to open search", err)
	}

	res, err := s.CollectListItems(ctx, searchScroll)
	if err != nil {
		fatal("Search collection failed", err)
	}
	printResults(s.Results())
	if res.State != "" {
		ui.PrintInfo("Finished", res.State)
	}
	saveExport(s)
}

func runBatch(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.Close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	keyword := args[0]
	s, err := a.launch(ctx, SearchURL(keyword))
	if err != nil {
		fatal("Failed to open search", err)
	}

	ui.PrintHighlight("[COLLECTING SEARCH RESULTS]")
	list, err := s.CollectListItems(ctx, batchScroll)
	if err != nil {
		fatal("Search collection failed", err)
	}
	ui.PrintInfo("Results", fmt.Sprint(list.Total))

	total := list.Total
	if batchLimit > 0 && batchLimit < total {
		total = batchLimit
	}
	if batchResume && !forceRestart {
		printResumeInfo(keyword)
	}
	progress := ui.NewBatchProgress(os.Stdout, keyword, total, verbose)
	notifier := ui.NewNotifier(notifications)

	ui.PrintHighlight("[PROCESSING NOTES]")
	report, err := s.RunBatch(ctx, scraper.BatchRequest{
		List:         keyword,
		Limit:        batchLimit,
		SkipComments: skipComments,
		Resume:       batchResume,
		ForceRestart: forceRestart,
		Progress:     progress.Item,
	})
	if err != nil {
		notifier.SendError("Batch failed", err.Error())
		fatal("Batch failed", err)
	}
	progress.Complete(report)

	msg := fmt.Sprintf("%d/%d notes from %s", report.Processed+report.Resumed, report.Total, keyword)
	if report.Stopped {
		notifier.SendNotification("Batch stopped", msg)
	} else {
		notifier.SendSuccess("Batch complete", msg)
	}
}

// printResumeInfo reports an unfinished earlier run of list
func printResumeInfo(list string) {
	mgr, err := checkpoint.NewManager(list)
	if err != nil {
		return
	}
	info, err := mgr.GetCheckpointInfo()
	if err != nil || info == nil {
		return
	}
	ui.PrintInfo("Resuming", fmt.Sprintf("%v/%v done, last update %v ago",
		info["processed"], info["total"], info["age"].(time.Duration).Round(time.Second)))
}

func printResults(items []models.SearchResultItem) {
	for i, it := range items {
		fmt.Printf("%3d. %s %s %s\n", i+1, ui.Cyan(it.ID), it.Title, ui.Dim("@"+it.Author+" ♥"+it.Likes))
	}
}
