package browser

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"courseval-parser/internal/config"
)

// Session owns one browser connection. It is handed over already
// authenticated (attach via control_url) or launched fresh so the operator
// can complete the login flow by hand; no credentials pass through here.
type Session struct {
	browser *rod.Browser
	cfg     *config.Config
	logger  *slog.Logger
	pacer   *pacer
}

func Connect(cfg *config.Config, logger *slog.Logger) (*Session, error) {
	controlURL := cfg.Browser.ControlURL

	if controlURL == "" {
		l := launcher.New().
			Headless(cfg.Browser.Headless).
			NoSandbox(true).
			Leakless(false)
		if cfg.Browser.ChromePath != "" {
			l = l.Bin(cfg.Browser.ChromePath)
		}

		launched, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
		controlURL = launched
		logger.Info("Browser launched", "headless", cfg.Browser.Headless)
	} else {
		logger.Info("Attaching to existing browser session")
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Session{
		browser: browser,
		cfg:     cfg,
		logger:  logger,
		pacer:   newPacer(cfg.GetMinActionSpacing()),
	}, nil
}

// OpenView navigates a fresh page to the given URL and waits for it to load.
func (s *Session) OpenView(ctx context.Context, url string) (*View, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("failed to open page %s: %w", url, err)
	}

	if err := page.Context(ctx).Timeout(s.cfg.GetPageTimeout()).WaitLoad(); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}

	return s.newView(page), nil
}

// OpenRecord fetches the rendered content of one record in its own page,
// hops into the content frame and returns its HTML. The page is closed
// before returning so record fetches never accumulate tabs.
func (s *Session) OpenRecord(ctx context.Context, url string) (string, error) {
	view, err := s.OpenView(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := view.Close(); closeErr != nil {
			s.logger.Warn("Failed to close record page", "url", url, "error", closeErr.Error())
		}
	}()

	frame, err := view.Frame(ctx, s.cfg.Survey.ContentFrame)
	if err != nil {
		return "", fmt.Errorf("record %s: %w", url, err)
	}
	if err := frame.WaitStable(ctx); err != nil {
		return "", fmt.Errorf("record %s: %w", url, err)
	}
	return frame.HTML(ctx)
}

func (s *Session) newView(page *rod.Page) *View {
	return &View{
		page:          page,
		pacer:         s.pacer,
		pageTimeout:   s.cfg.GetPageTimeout(),
		stableTimeout: s.cfg.GetWaitStableTimeout(),
		stableWindow:  s.cfg.GetStableWindow(),
	}
}

func (s *Session) Close() error {
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}
