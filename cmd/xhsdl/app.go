package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"xhsdl/internal/browser"
	"xhsdl/pkg/auth"
	"xhsdl/pkg/config"
	"xhsdl/pkg/errors"
	"xhsdl/pkg/fetch"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/media"
	"xhsdl/pkg/models"
	"xhsdl/pkg/publish"
	"xhsdl/pkg/retry"
	"xhsdl/pkg/scraper"
	"xhsdl/pkg/storage"
	"xhsdl/pkg/ui"
	"xhsdl/pkg/view/htmlview"
)

const siteURL = "https://www.xiaohongshu.com"

// SearchURL is the result page of a keyword search
func SearchURL(keyword string) string {
	return siteURL + "/search_result?keyword=" + url.QueryEscape(keyword) + "&source=web_search_result_notes"
}

// app holds what every command needs: configuration, logger, post store
// and output directory, plus the browser once launched
type app struct {
	cfg     *config.Config
	log     logger.Logger
	store   storage.Store
	out     *storage.Manager
	browser *browser.Session
}

// flagMap collects the flags the user set, keyed the way
// config.MergeCommandLineFlags expects
func flagMap(fs *pflag.FlagSet) map[string]interface{} {
	flags := make(map[string]interface{})
	fs.Visit(func(f *pflag.Flag) {
		switch f.Value.Type() {
		case "bool":
			v, _ := fs.GetBool(f.Name)
			flags[f.Name] = v
		case "int":
			v, _ := fs.GetInt(f.Name)
			flags[f.Name] = v
		default:
			flags[f.Name] = f.Value.String()
		}
	})
	if _, ok := flags["log-level"]; !ok && logLevel != "info" {
		flags["log-level"] = logLevel
	}
	return flags
}

// newApp loads configuration and opens the store
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configFile, flagMap(cmd.Flags()))
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	log := logger.GetLogger()

	a := &app{cfg: cfg, log: log}
	if a.store, err = a.openStore(); err != nil {
		return nil, err
	}
	if a.out, err = storage.NewManager(cfg.Output.Directory); err != nil {
		a.store.Close()
		return nil, err
	}
	return a, nil
}

// openStore opens the configured backend, wrapped with the NATS publisher
// when one is configured
func (a *app) openStore() (storage.Store, error) {
	inner, err := storage.Open(a.cfg.Storage)
	if err != nil {
		return nil, err
	}
	if a.cfg.Publish.NATSURL == "" {
		return inner, nil
	}

	conn, err := publish.Connect(a.cfg.Publish.NATSURL)
	if err != nil {
		a.log.WithError(err).WithField("url", a.cfg.Publish.NATSURL).Warn("NATS unavailable, posts will not be published")
		return inner, nil
	}
	return publish.Wrap(inner, conn, a.cfg.Publish.Subject, a.log), nil
}

// account picks the session cookie: --cookie or XHSDL_COOKIE first, then
// --account, then the default stored account. A missing cookie is not an
// error; pages then render as a logged-out visitor sees them.
func (a *app) account() (*auth.Account, error) {
	if a.cfg.Browser.Cookie != "" {
		if err := auth.ValidateCookie(a.cfg.Browser.Cookie); err != nil {
			return nil, err
		}
		return &auth.Account{Username: "config", Cookie: a.cfg.Browser.Cookie}, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if accountName != "" {
		return manager.Retrieve(accountName)
	}
	account, err := manager.RetrieveDefault()
	if err != nil {
		a.log.Warn("No session cookie stored, continuing logged out")
		ui.PrintWarning("No session cookie found", "run 'xhsdl auth login' for full comment feeds")
		return nil, nil
	}
	return account, nil
}

// mediaDownloader builds the archive writer used by media commands
func (a *app) mediaDownloader() *media.Downloader {
	client := fetch.NewClient(a.cfg.Download.Timeout, a.log)
	if a.cfg.Browser.UserAgent != "" {
		client.SetHeader("User-Agent", a.cfg.Browser.UserAgent)
	}
	if a.cfg.Download.RetryAttempts > 1 {
		client.SetRetry(a.cfg.Download.RetryAttempts, retry.DefaultExponentialBackoff())
	}
	return media.New(client, a.out, a.cfg.Download, media.WithLogger(a.log))
}

func (a *app) sessionOptions() []scraper.Option {
	return []scraper.Option{
		scraper.WithMedia(a.mediaDownloader()),
		scraper.WithOutput(a.out),
		scraper.WithLogger(a.log),
	}
}

// launch opens the browser at startURL and returns a session over it
func (a *app) launch(ctx context.Context, startURL string) (*scraper.Session, error) {
	account, err := a.account()
	if err != nil {
		return nil, err
	}
	if account != nil {
		ui.PrintInfo("Using account", account.Username)
	}

	bcfg := a.cfg.Browser
	if startURL != "" {
		bcfg.StartURL = startURL
	}
	b, err := browser.Launch(ctx, bcfg, account, a.log)
	if err != nil {
		return nil, err
	}
	a.browser = b
	return scraper.New(b.Page(), a.store, a.cfg, a.sessionOptions()...), nil
}

// snapshot returns a session over a saved HTML page
func (a *app) snapshot(path, location string) (*scraper.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := htmlview.Parse(f, location)
	if err != nil {
		return nil, err
	}
	return scraper.New(snapshotPage{doc}, a.store, a.cfg, a.sessionOptions()...), nil
}

// session launches a browser, or reads htmlPath when set
func (a *app) session(ctx context.Context, location, htmlPath string) (*scraper.Session, error) {
	if htmlPath != "" {
		return a.snapshot(htmlPath, location)
	}
	return a.launch(ctx, location)
}

func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			a.log.WithError(err).Debug("Browser close failed")
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Debug("Store close failed")
	}
}

// snapshotPage is a saved page; it cannot navigate
type snapshotPage struct {
	*htmlview.Document
}

func (snapshotPage) Open(context.Context, models.SearchResultItem) error {
	return errors.New(errors.ErrorTypeNotFound, "a saved page cannot open items")
}

func (snapshotPage) Back(context.Context) error {
	return errors.New(errors.ErrorTypeNotFound, "a saved page has no history")
}

// signalContext is cancelled on interrupt; runs then stop at their next
// suspension point
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// fatal prints err and exits
func fatal(msg string, err error) {
	logger.WithError(err).Error(msg)
	ui.PrintError(msg, err.Error())
	os.Exit(1)
}

// mustApp is newApp for Run functions
func mustApp(cmd *cobra.Command) *app {
	a, err := newApp(cmd)
	if err != nil {
		fatal("Failed to initialize", err)
	}
	return a
}
