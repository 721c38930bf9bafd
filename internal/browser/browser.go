// Package browser launches the Chromium session the live commands drive:
// stealth patches, proxy, user agent and the restored site session cookie.
package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"xhsdl/pkg/auth"
	"xhsdl/pkg/config"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/view/rodview"
)

// CookieDomain scopes restored cookies to every site subdomain
const CookieDomain = ".xiaohongshu.com"

// Session is a running browser with one stealth tab
type Session struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rodview.Page
	logger   logger.Logger
}

// Launch starts (or attaches to, when ControlURL is set) a browser, opens a
// stealth tab, restores account's cookies and navigates to StartURL.
// account may be nil.
func Launch(ctx context.Context, cfg config.BrowserConfig, account *auth.Account, log logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	s := &Session{logger: log}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.ProxyURL != "" {
			l = l.Proxy(cfg.ProxyURL)
		}
		u, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		s.launcher = l
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		s.kill()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	// Detach the context used for the handshake; the session outlives ctx.
	s.browser = b.Context(context.Background())

	page, err := stealth.Page(s.browser)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	ua := cfg.UserAgent
	if account != nil && account.UserAgent != "" {
		ua = account.UserAgent
	}
	if ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			log.WithError(err).Warn("User agent override failed")
		}
	}

	if account != nil {
		params, err := CookieParams(account, CookieDomain)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		if err := s.browser.SetCookies(params); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("browser: restore cookies: %w", err)
		}
		log.InfoWithFields("Session cookie restored", map[string]interface{}{
			"account": account.Username,
			"cookies": len(params),
		})
	}

	s.page = rodview.New(page,
		rodview.WithLogger(log),
		rodview.WithNavigationTimeout(cfg.NavigationTimeout),
	)

	if cfg.StartURL != "" {
		if err := s.page.Navigate(ctx, cfg.StartURL); err != nil {
			_ = s.Close()
			return nil, err
		}
	}

	logger.LogComponentStart(log, "browser", map[string]interface{}{
		"headless": cfg.Headless,
		"proxy":    cfg.ProxyURL != "",
		"attached": cfg.ControlURL != "",
	})
	return s, nil
}

// Page returns the tab as a view.Page
func (s *Session) Page() *rodview.Page { return s.page }

// Close closes the browser and kills a launched process
func (s *Session) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
	}
	s.kill()
	logger.LogComponentStop(s.logger, "browser", "closed")
	return err
}

func (s *Session) kill() {
	if s.launcher != nil {
		s.launcher.Kill()
	}
}

// CookieParams converts the account's Cookie header into CDP cookie params
func CookieParams(account *auth.Account, domain string) ([]*proto.NetworkCookieParam, error) {
	cookies, err := account.Cookies()
	if err != nil {
		return nil, err
	}
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:   c.Name,
			Value:  c.Value,
			Domain: domain,
			Path:   "/",
			Secure: true,
		})
	}
	return params, nil
}
