package survey

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxResetSteps bounds the previous-page walk during a first-page reset so
// a broken pagination widget cannot loop forever.
const maxResetSteps = 50

// TermPicker enumerates reporting periods from the term drop-down and
// activates them one at a time.
type TermPicker struct {
	selectors     *Selectors
	exclusions    []string
	settleRetries int
	logger        *slog.Logger
}

func NewTermPicker(selectors *Selectors, exclusions []string, settleRetries int, logger *slog.Logger) *TermPicker {
	return &TermPicker{
		selectors:     selectors,
		exclusions:    exclusions,
		settleRetries: settleRetries,
		logger:        logger,
	}
}

// Terms reads the drop-down options in display order. The leading option is
// a placeholder and is always skipped; excluded labels are filtered out.
func (tp *TermPicker) Terms(ctx context.Context, view View) ([]Term, error) {
	html, err := view.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read term drop-down: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse term drop-down: %w", err)
	}

	var terms []Term
	doc.Find(tp.selectors.TermOptions).Each(func(i int, opt *goquery.Selection) {
		if i == 0 {
			return // placeholder option
		}
		label := strings.TrimSpace(opt.Text())
		if label == "" || tp.excluded(label) {
			return
		}
		value, _ := opt.Attr("value")
		terms = append(terms, Term{Label: label, Value: value, Index: i})
	})

	tp.logger.Info("Terms enumerated",
		"total", len(terms),
		"exclusions", strings.Join(tp.exclusions, ","),
	)
	return terms, nil
}

func (tp *TermPicker) excluded(label string) bool {
	for _, marker := range tp.exclusions {
		if marker != "" && strings.Contains(label, marker) {
			return true
		}
	}
	return false
}

// Activate selects the term, waits for the listing to settle and resets
// pagination to page 1. Switching terms does not reset pagination in the
// source view, so skipping the reset silently starts enumeration
// mid-sequence. A *ResetError return means the reset failed best-effort;
// the listing is usable from whatever page is current.
func (tp *TermPicker) Activate(ctx context.Context, view View, term Term) error {
	if err := view.Click(ctx, tp.optionSelector(term)); err != nil {
		return fmt.Errorf("term %q: activate: %w", term.Label, err)
	}
	if err := waitSettled(ctx, view, tp.settleRetries); err != nil {
		return fmt.Errorf("term %q: %w", term.Label, err)
	}
	return tp.resetFirstPage(ctx, view)
}

func (tp *TermPicker) optionSelector(term Term) string {
	if term.Value != "" {
		return fmt.Sprintf("%s option[value=%q]", tp.selectors.TermSelect, term.Value)
	}
	return fmt.Sprintf("%s option:nth-child(%d)", tp.selectors.TermSelect, term.Index+1)
}

func (tp *TermPicker) resetFirstPage(ctx context.Context, view View) error {
	for step := 0; step <= maxResetSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		active, err := view.ExistsText(ctx, tp.selectors.ActivePage, `^1$`)
		if err != nil {
			return &ResetError{Reason: fmt.Sprintf("probe active page: %v", err)}
		}
		if active {
			return nil
		}

		present, err := view.ExistsText(ctx, tp.selectors.PageLinks, `^1$`)
		if err != nil {
			return &ResetError{Reason: fmt.Sprintf("probe page 1 link: %v", err)}
		}
		if present {
			if err := view.ClickText(ctx, tp.selectors.PageLinks, `^1$`); err != nil {
				return &ResetError{Reason: fmt.Sprintf("click page 1: %v", err)}
			}
			if err := waitSettled(ctx, view, tp.settleRetries); err != nil {
				return &ResetError{Reason: err.Error()}
			}
			return nil
		}

		// Page 1 scrolled out of the pagination window: walk backwards.
		hasPrev, err := view.Exists(ctx, tp.selectors.PrevEnabled)
		if err != nil {
			return &ResetError{Reason: fmt.Sprintf("probe previous affordance: %v", err)}
		}
		if !hasPrev {
			return &ResetError{Reason: "page 1 not visible and no previous-page affordance"}
		}
		if err := view.Click(ctx, tp.selectors.PrevEnabled); err != nil {
			return &ResetError{Reason: fmt.Sprintf("click previous: %v", err)}
		}
		if err := waitSettled(ctx, view, tp.settleRetries); err != nil {
			return &ResetError{Reason: err.Error()}
		}
	}
	return &ResetError{Reason: fmt.Sprintf("page 1 not reached within %d steps", maxResetSteps)}
}
