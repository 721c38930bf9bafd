package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"xhsdl/pkg/export"
	"xhsdl/pkg/models"
	"xhsdl/pkg/storage"
	"xhsdl/pkg/ui"
)

var assumeYes bool

// storeCmd represents the store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect or clear the post store",
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored notes",
	Run:   runStoreList,
}

var storeClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored note",
	Run:   runStoreClear,
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write one CSV file per stored note",
	Long: `Write every stored note with its comments to the output directory, one
CSV file per note, named xhs_<id>_<title>.csv.`,
	Run: runExport,
}

func init() {
	rootCmd.AddCommand(storeCmd)
	rootCmd.AddCommand(exportCmd)
	storeCmd.AddCommand(storeListCmd)
	storeCmd.AddCommand(storeClearCmd)

	storeClearCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "do not ask for confirmation")
}

func runStoreList(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.Close()

	posts, err := a.store.LoadAll(cmd.Context())
	if err != nil {
		fatal("Failed to read store", err)
	}
	if len(posts) == 0 {
		ui.PrintInfo("No stored notes", "use 'xhsdl note' or 'xhsdl batch' to add some")
		return
	}

	ui.PrintHighlight(fmt.Sprintf("Stored Notes (%d)", len(posts)))
	for i, p := range posts {
		fmt.Printf("%3d. %s %s\n", i+1, ui.Cyan(p.ID), p.Title)
		fmt.Printf("     %s\n", ui.Dim(fmt.Sprintf("@%s • %d comments • %s",
			p.Author, len(p.Comments), p.ExtractedAt.Format("2006-01-02 15:04:05"))))
	}
}

func runStoreClear(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.Close()

	if !assumeYes {
		fmt.Print("Remove ALL stored notes? This cannot be undone! (yes/N): ")
		confirm, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			return
		}
	}
	if err := a.store.Clear(cmd.Context()); err != nil {
		fatal("Failed to clear store", err)
	}
	ui.PrintSuccess("Store cleared")
}

func runExport(cmd *cobra.Command, args []string) {
	a := mustApp(cmd)
	defer a.Close()

	paths, err := exportStored(cmd.Context(), a.store, a.out, time.Now())
	if err != nil {
		fatal("Export failed", err)
	}
	if len(paths) == 0 {
		ui.PrintInfo("No stored notes", "nothing to export")
		return
	}
	for _, p := range paths {
		fmt.Println("  " + p)
	}
	ui.PrintSuccess(fmt.Sprintf("Exported %d notes", len(paths)))
}

// exportStored writes a CSV per stored post and returns the written paths
func exportStored(ctx context.Context, store storage.Store, out *storage.Manager, now time.Time) ([]string, error) {
	posts, err := store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(posts))
	for i := range posts {
		p := posts[i]
		d := export.Data{Post: &p, Comments: append([]models.Comment(nil), p.Comments...)}
		content, err := export.CSV(d, now)
		if err != nil {
			return paths, err
		}
		path, err := out.Save(export.FileName(d, now), strings.NewReader(content))
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
