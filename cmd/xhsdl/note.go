package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"xhsdl/pkg/models"
	"xhsdl/pkg/scraper"
	"xhsdl/pkg/ui"
)

var (
	htmlFile     string
	withComments bool
	noExport     bool
)

// noteCmd represents the note command
var noteCmd = &cobra.Command{
	Use:   "note <url>",
	Short: "Extract a note's details",
	Long: `Open a note and extract its title, body, tags, media links, counts,
publish date and location. The note is stored and exported as CSV.

With --html the note is read from a saved page instead of a live browser;
the url argument then only names where the page came from.`,
	Example: `  xhsdl note https://www.xiaohongshu.com/explore/65f1a2b3c4d5e6f7a8b9c0d1
  xhsdl note https://www.xiaohongshu.com/explore/65f1a2b3c4d5e6f7a8b9c0d1 --comments
  xhsdl note https://www.xiaohongshu.com/explore/65f1a2b3c4d5e6f7a8b9c0d1 --html saved.html`,
	Args: cobra.ExactArgs(1),
	Run:  runNote,
}

// commentsCmd represents the comments command
var commentsCmd = &cobra.Command{
	Use:   "comments <url>",
	Short: "Collect every comment of a note",
	Long: `Open a note and scroll its comment feed until the end marker shows, no new
comments appear for the configured number of cycles, or the record ceiling
is reached. Replies are expanded along the way. Ctrl+C stops the run at the
next pause and keeps what was collected.`,
	Args: cobra.ExactArgs(1),
	Run:  runComments,
}

// mediaCmd represents the media command
var mediaCmd = &cobra.Command{
	Use:   "media <url>",
	Short: "Download a note's images and videos as a zip",
	Args:  cobra.ExactArgs(1),
	Run:   runMedia,
}

func init() {
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(mediaCmd)

	for _, c := range []*cobra.Command{noteCmd, commentsCmd, mediaCmd} {
		c.Flags().StringVar(&htmlFile, "html", "", "read a saved page instead of launching a browser")
	}
	for _, c := range []*cobra.Command{noteCmd, commentsCmd} {
		c.Flags().BoolVar(&noExport, "no-export", false, "do not write a CSV file")
		c.Flags().Int("threshold", 0, "empty cycles before the feed counts as converged")
		c.Flags().Int("max-records", 0, "stop after this many comments and replies")
	}
	noteCmd.Flags().BoolVar(&withComments, "comments", false, "also collect the comment feed")
	mediaCmd.Flags().Int("workers", 0, "parallel asset downloads")
	mediaCmd.Flags().Bool("skip-videos", false, "only archive images")
}

func runNote(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.Close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := a.session(ctx, args[0], htmlFile)
	if err != nil {
		fatal("Failed to open note", err)
	}

	post, err := s.ExtractCurrentItem(ctx)
	if err != nil {
		fatal("Extraction failed", err)
	}
	if withComments {
		if _, err := s.CollectComments(ctx); err != nil {
			fatal("Comment collection failed", err)
		}
		post = s.Current()
	}

	printPost(post)
	saveExport(s)
}

func runComments(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.Close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := a.session(ctx, args[0], htmlFile)
	if err != nil {
		fatal("Failed to open note", err)
	}

	ui.PrintHighlight("[COLLECTING COMMENTS]")
	res, err := s.CollectComments(ctx)
	if err != nil {
		fatal("Comment collection failed", err)
	}

	post := s.Current()
	ui.PrintInfo("Run", res.RunID)
	ui.PrintInfo("Finished", res.State.String())
	ui.PrintInfo("Cycles", fmt.Sprint(res.Cycles))
	ui.PrintInfo("Comments", fmt.Sprintf("%d (+%d replies)", len(post.Comments), models.ReplyCount(post.Comments)))
	saveExport(s)
}

func runMedia(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.Close()
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := a.session(ctx, args[0], htmlFile)
	if err != nil {
		fatal("Failed to open note", err)
	}

	res, err := s.DownloadMedia(ctx)
	if err != nil {
		fatal("Media download failed", err)
	}
	ui.PrintSuccess("Archive saved: " + res.Path)
	ui.PrintInfo("Assets", fmt.Sprintf("%d downloaded, %d failed", res.Downloaded, res.Failed))
}

func printPost(p *models.Post) {
	ui.PrintInfo("Note", p.ID)
	ui.PrintInfo("Title", p.Title)
	ui.PrintInfo("Author", p.Author)
	ui.PrintInfo("Published", p.PublishedAt)
	ui.PrintInfo("Likes/Collects/Comments", fmt.Sprintf("%s/%s/%s", p.Likes, p.Collects, p.CommentsCnt))
	ui.PrintInfo("Media", fmt.Sprintf("%d images, %d videos", len(p.MediaURLs), len(p.VideoURLs)))
	if len(p.Comments) > 0 {
		ui.PrintInfo("Comments collected", fmt.Sprint(len(p.Comments)))
	}
}

func saveExport(s *scraper.Session) {
	if noExport {
		return
	}
	path, err := s.SaveExport()
	if err != nil {
		fatal("Export failed", err)
	}
	ui.PrintSuccess("Exported: " + path)
}
