package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// View implements the survey.View accessor over one rod page or frame.
// Clicks are paced with a minimum inter-action spacing to avoid hammering
// the target site.
type View struct {
	page          *rod.Page
	pacer         *pacer
	pageTimeout   time.Duration
	stableTimeout time.Duration
	stableWindow  time.Duration
}

func (v *View) HTML(ctx context.Context) (string, error) {
	html, err := v.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("read view HTML: %w", err)
	}
	return html, nil
}

func (v *View) Click(ctx context.Context, selector string) error {
	if err := v.pacer.wait(ctx); err != nil {
		return err
	}
	el, err := v.page.Context(ctx).Timeout(v.pageTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %q: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q: %w", selector, err)
	}
	return nil
}

// ClickText clicks the element matching selector whose text matches the
// given regular expression.
func (v *View) ClickText(ctx context.Context, selector, pattern string) error {
	if err := v.pacer.wait(ctx); err != nil {
		return err
	}
	el, err := v.page.Context(ctx).Timeout(v.pageTimeout).ElementR(selector, pattern)
	if err != nil {
		return fmt.Errorf("element %q (text %q): %w", selector, pattern, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %q (text %q): %w", selector, pattern, err)
	}
	return nil
}

func (v *View) Exists(ctx context.Context, selector string) (bool, error) {
	has, _, err := v.page.Context(ctx).Has(selector)
	if err != nil {
		return false, fmt.Errorf("probe %q: %w", selector, err)
	}
	return has, nil
}

func (v *View) ExistsText(ctx context.Context, selector, pattern string) (bool, error) {
	has, _, err := v.page.Context(ctx).HasR(selector, pattern)
	if err != nil {
		return false, fmt.Errorf("probe %q (text %q): %w", selector, pattern, err)
	}
	return has, nil
}

// WaitStable blocks until the view shows no DOM changes for the configured
// window, bounded by the stable timeout.
func (v *View) WaitStable(ctx context.Context) error {
	if err := v.page.Context(ctx).Timeout(v.stableTimeout).WaitStable(v.stableWindow); err != nil {
		return fmt.Errorf("wait stable: %w", err)
	}
	return nil
}

// Frame waits for the iframe matching selector and returns a View scoped
// to its document.
func (v *View) Frame(ctx context.Context, selector string) (*View, error) {
	el, err := v.page.Context(ctx).Timeout(v.pageTimeout).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("iframe %q: %w", selector, err)
	}
	frame, err := el.Frame()
	if err != nil {
		return nil, fmt.Errorf("iframe %q: enter frame: %w", selector, err)
	}
	return &View{
		page:          frame,
		pacer:         v.pacer,
		pageTimeout:   v.pageTimeout,
		stableTimeout: v.stableTimeout,
		stableWindow:  v.stableWindow,
	}, nil
}

func (v *View) Close() error {
	return v.page.Close()
}

// pacer enforces a minimum spacing between state-changing actions.
type pacer struct {
	spacing time.Duration
	mu      sync.Mutex
	last    time.Time
}

func newPacer(spacing time.Duration) *pacer {
	return &pacer{spacing: spacing}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.spacing <= 0 {
		return nil
	}

	p.mu.Lock()
	sleep := p.spacing - time.Since(p.last)
	p.last = time.Now().Add(sleep)
	p.mu.Unlock()

	if sleep <= 0 {
		return nil
	}
	select {
	case <-time.After(sleep):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
