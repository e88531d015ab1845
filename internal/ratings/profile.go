package ratings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noRatingsText is what the ratings-count affordance shows before the
// first rating lands.
const noRatingsText = "Add a rating."

// ProfileParser extracts scalar rating fields and tags from a rendered
// profile page. Every scalar is independently optional.
type ProfileParser struct {
	selectors *Selectors
}

func NewProfileParser(selectors *Selectors) *ProfileParser {
	return &ProfileParser{selectors: selectors}
}

func (pp *ProfileParser) Parse(html, professorID string) (*Professor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("professor %s: parse HTML: %w", professorID, err)
	}

	prof := &Professor{ID: professorID}

	prof.NumRatings, err = pp.parseNumRatings(doc)
	if err != nil {
		return nil, fmt.Errorf("professor %s: %w", professorID, err)
	}

	prof.AvgRating, err = pp.parseAvgRating(doc)
	if err != nil {
		return nil, fmt.Errorf("professor %s: %w", professorID, err)
	}

	prof.WouldTakeAgain, prof.Difficulty, err = pp.parseFeedback(doc)
	if err != nil {
		return nil, fmt.Errorf("professor %s: %w", professorID, err)
	}

	prof.Tags = pp.parseTags(doc)

	return prof, nil
}

// parseNumRatings maps a missing count affordance and the pre-first-rating
// placeholder both to zero.
func (pp *ProfileParser) parseNumRatings(doc *goquery.Document) (int, error) {
	text := firstText(doc.Selection, pp.selectors.NumRatings)
	if text == "" || text == noRatingsText {
		return 0, nil
	}
	numText, _, found := strings.Cut(text, "rating")
	if !found {
		numText = text
	}
	n, err := strconv.Atoi(strings.TrimSpace(numText))
	if err != nil {
		return 0, fmt.Errorf("ratings count: cannot parse %q", text)
	}
	if n < 0 {
		return 0, fmt.Errorf("ratings count: negative value %d", n)
	}
	return n, nil
}

func (pp *ProfileParser) parseAvgRating(doc *goquery.Document) (NullFloat, error) {
	text := firstText(doc.Selection, pp.selectors.AvgRating)
	if text == "" || text == NotAvailable {
		return NullFloat{}, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return NullFloat{}, fmt.Errorf("average rating: cannot parse %q", text)
	}
	return Float(v), nil
}

// parseFeedback reads the would-take-again percentage and the difficulty
// score. The percentage arrives as a whole-number percent string and is
// normalized to a fraction.
func (pp *ProfileParser) parseFeedback(doc *goquery.Document) (wta, difficulty NullFloat, err error) {
	var texts []string
	for _, selector := range pp.selectors.FeedbackNumbers {
		doc.Find(selector).Each(func(i int, s *goquery.Selection) {
			texts = append(texts, strings.TrimSpace(s.Text()))
		})
		if len(texts) > 0 {
			break
		}
	}

	if len(texts) > 0 && texts[0] != NotAvailable && texts[0] != "" {
		pct, perr := strconv.ParseFloat(strings.TrimSuffix(texts[0], "%"), 64)
		if perr != nil {
			return wta, difficulty, fmt.Errorf("would-take-again: cannot parse %q", texts[0])
		}
		wta = Float(pct / 100)
	}

	if len(texts) > 1 && texts[1] != NotAvailable && texts[1] != "" {
		lvl, perr := strconv.ParseFloat(texts[1], 64)
		if perr != nil {
			return wta, difficulty, fmt.Errorf("difficulty: cannot parse %q", texts[1])
		}
		difficulty = Float(lvl)
	}

	return wta, difficulty, nil
}

// parseTags returns an empty set when the tag container is absent.
func (pp *ProfileParser) parseTags(doc *goquery.Document) []string {
	container := firstSelection(doc, pp.selectors.TagsContainer)
	if container == nil {
		return nil
	}

	var tags []string
	for _, selector := range pp.selectors.Tags {
		container.Find(selector).Each(func(i int, s *goquery.Selection) {
			if tag := strings.TrimSpace(s.Text()); tag != "" {
				tags = append(tags, tag)
			}
		})
		if len(tags) > 0 {
			break
		}
	}
	return tags
}

func firstText(root *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		text := strings.TrimSpace(root.Find(selector).First().Text())
		if text != "" {
			return text
		}
	}
	return ""
}

func firstSelection(doc *goquery.Document, selectors []string) *goquery.Selection {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() > 0 {
			return sel
		}
	}
	return nil
}
