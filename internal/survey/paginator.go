package survey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Paginator walks a paginated listing view and harvests every record link.
type Paginator struct {
	selectors     *Selectors
	baseURL       string
	maxPages      int
	settleRetries int
	logger        *slog.Logger
}

func NewPaginator(selectors *Selectors, baseURL string, maxPages, settleRetries int, logger *slog.Logger) *Paginator {
	return &Paginator{
		selectors:     selectors,
		baseURL:       strings.TrimRight(baseURL, "/"),
		maxPages:      maxPages,
		settleRetries: settleRetries,
		logger:        logger,
	}
}

// CollectLinks enumerates record links page by page until the next-page
// affordance is exhausted. Links already collected are returned alongside
// any error so callers can keep partial results.
func (p *Paginator) CollectLinks(ctx context.Context, view View) ([]RecordLink, error) {
	var links []RecordLink
	seen := make(map[RecordLink]struct{})
	pageNum := 1

	for {
		if err := waitSettled(ctx, view, p.settleRetries); err != nil {
			return links, err
		}

		html, err := view.HTML(ctx)
		if err != nil {
			return links, fmt.Errorf("page %d: read view: %w", pageNum, err)
		}

		pageLinks, err := p.parsePageLinks(html, pageNum)
		if err != nil {
			return links, err
		}

		added := 0
		for _, link := range pageLinks {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
			added++
		}

		p.logger.Info("Page harvested",
			"page", pageNum,
			"rows", len(pageLinks),
			"new_links", added,
		)

		hasNext, err := view.Exists(ctx, p.selectors.NextEnabled)
		if err != nil {
			return links, fmt.Errorf("page %d: probe next affordance: %w", pageNum, err)
		}
		if !hasNext {
			p.logger.Info("No more pages", "last_page", pageNum)
			break
		}

		if p.maxPages > 0 && pageNum >= p.maxPages {
			p.logger.Warn("Stopping at max_pages guard", "page", pageNum)
			break
		}

		if err := view.Click(ctx, p.selectors.NextEnabled); err != nil {
			return links, fmt.Errorf("page %d: advance to next page: %w", pageNum, err)
		}
		pageNum++
	}

	return links, nil
}

// parsePageLinks maps every result row to the first hyperlink it contains,
// resolved against the site origin.
func (p *Paginator) parsePageLinks(html string, pageNum int) ([]RecordLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("page %d: parse HTML: %w", pageNum, err)
	}

	var links []RecordLink
	var rowErr error

	doc.Find(p.selectors.ResultRows).EachWithBreak(func(i int, row *goquery.Selection) bool {
		href, exists := row.Find("a[href]").First().Attr("href")
		if !exists || href == "" {
			rowErr = &NoLinkError{Page: pageNum, Row: i}
			return false
		}
		links = append(links, p.absolute(href))
		return true
	})

	if rowErr != nil {
		return nil, rowErr
	}
	return links, nil
}

func (p *Paginator) absolute(href string) RecordLink {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return RecordLink(href)
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return RecordLink(p.baseURL + href)
}

// waitSettled retries WaitStable so transient load hiccups are absorbed at
// the settle step, not at the page turn.
func waitSettled(ctx context.Context, view View, retries int) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = view.WaitStable(ctx)
		if lastErr == nil {
			return nil
		}
	}
	return &TimeoutError{Op: "wait for settle", Attempts: retries + 1, Err: lastErr}
}
