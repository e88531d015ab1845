package survey

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RecordParser extracts one flat row from a rendered survey record.
type RecordParser struct {
	selectors *Selectors
	// questionOffset skips the leading non-question groups (axis labels,
	// legend) inside the question container.
	questionOffset int
}

func NewRecordParser(selectors *Selectors, questionOffset int) *RecordParser {
	return &RecordParser{selectors: selectors, questionOffset: questionOffset}
}

// Parse reads the metadata list and the effectiveness chart. The chart's
// numeric series holds the instructor means followed by the reference-group
// means; each question scores the rounded difference of its pair.
func (rp *RecordParser) Parse(html string, link RecordLink, term string) (*Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("record %s: parse HTML: %w", link, err)
	}

	details := rp.parseDetails(doc)
	row := &Row{
		Term:        term,
		URL:         string(link),
		Instructor:  detailOrNA(details, "Instructor"),
		CourseTitle: detailOrNA(details, "Course Title"),
		Section:     detailOrNA(details, "Section"),
		CourseID:    detailOrNA(details, "Course ID"),
	}

	questions := rp.parseQuestions(doc)
	values, err := rp.parseValues(doc)
	if err != nil {
		return nil, err
	}

	if len(values) != 2*len(questions) {
		return nil, &SchemaMismatchError{
			Chart:     rp.selectors.ChartRatings,
			Questions: len(questions),
			Values:    len(values),
		}
	}

	for i, question := range questions {
		row.Scores = append(row.Scores, QuestionScore{
			Question: question,
			Diff:     round1(values[i] - values[i+len(questions)]),
		})
	}

	return row, nil
}

// parseDetails splits each list item on the first colon into a label/value
// pair. Values carry markup artifacts from the source view that have to be
// stripped.
func (rp *RecordParser) parseDetails(doc *goquery.Document) map[string]string {
	details := make(map[string]string)
	doc.Find(rp.selectors.DetailsList).Each(func(i int, item *goquery.Selection) {
		text := item.Text()
		idx := strings.Index(text, ":")
		if idx < 0 {
			return
		}
		key := strings.TrimSpace(text[:idx])
		value := cleanValue(text[idx+1:])
		if key != "" {
			details[key] = value
		}
	})
	return details
}

func (rp *RecordParser) parseQuestions(doc *goquery.Document) []string {
	var questions []string
	doc.Find(rp.selectors.ChartQuestions).Find("g").Each(func(i int, group *goquery.Selection) {
		if i < rp.questionOffset {
			return
		}
		text := strings.TrimSpace(group.Find("text").First().Text())
		if text != "" {
			questions = append(questions, text)
		}
	})
	return questions
}

func (rp *RecordParser) parseValues(doc *goquery.Document) ([]float64, error) {
	var values []float64
	var parseErr error

	doc.Find(rp.selectors.ChartRatings).Find("g").EachWithBreak(func(i int, group *goquery.Selection) bool {
		label := group.Find("text").First()
		if label.Length() == 0 {
			return true // structural group without a value label
		}
		text := strings.TrimSpace(label.Text())
		if text == "" {
			return true
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			parseErr = &ValueError{Chart: rp.selectors.ChartRatings, Index: len(values), Text: text}
			return false
		}
		values = append(values, v)
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}
	return values, nil
}

func detailOrNA(details map[string]string, key string) string {
	if v, ok := details[key]; ok && v != "" {
		return v
	}
	return NotAvailable
}

// cleanValue strips leftover strong tags, NBSPs and collapsed whitespace.
func cleanValue(s string) string {
	s = strings.ReplaceAll(s, "<strong>", "")
	s = strings.ReplaceAll(s, "</strong>", "")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// round1 keeps the one-decimal precision the source view displays.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
