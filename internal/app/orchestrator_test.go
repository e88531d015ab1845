package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"courseval-parser/internal/storage"
	"courseval-parser/internal/survey"
)

func appTestSelectors() *survey.Selectors {
	return &survey.Selectors{
		TermSelect:     "select#terms",
		TermOptions:    "select#terms option",
		ResultRows:     "table#results tbody tr",
		PageLinks:      "ul.pagination li a",
		ActivePage:     "ul.pagination li.active a",
		NextEnabled:    "li.next a",
		PrevEnabled:    "li.prev a",
		DetailsList:    "ul.details li",
		ChartQuestions: "svg#qchart",
		ChartRatings:   "svg#vchart",
	}
}

const listingHTML = `
<select id="terms">
  <option value="">Select a term</option>
  <option value="101">Fall 2023</option>
</select>
<table id="results"><tbody>
  <tr><td><a href="/eval/r/1">view</a></td></tr>
  <tr><td><a href="/eval/r/2">view</a></td></tr>
</tbody></table>`

const recordPageHTML = `
<ul class="details">
  <li>Instructor: Jane Doe</li>
  <li>Course Title: Databases</li>
</ul>
<svg id="qchart"><g><text>Q1</text></g></svg>
<svg id="vchart"><g><text>4.5</text></g><g><text>4.0</text></g></svg>`

// listingView serves a single-term, single-page listing. With stuckReset
// set, the pagination widget never shows page 1 and has no previous-page
// affordance, so the first-page reset cannot complete.
type listingView struct {
	selectors  *survey.Selectors
	stuckReset bool
}

func (v *listingView) HTML(ctx context.Context) (string, error) { return listingHTML, nil }
func (v *listingView) Click(ctx context.Context, selector string) error {
	return nil
}
func (v *listingView) ClickText(ctx context.Context, selector, pattern string) error {
	return nil
}
func (v *listingView) Exists(ctx context.Context, selector string) (bool, error) {
	// No next-page affordance: one page only.
	return false, nil
}
func (v *listingView) ExistsText(ctx context.Context, selector, pattern string) (bool, error) {
	// Already on page 1, unless the reset is scripted to be stuck.
	return !v.stuckReset && selector == v.selectors.ActivePage, nil
}
func (v *listingView) WaitStable(ctx context.Context) error { return nil }

type fakeOpener struct {
	failURL string
	opened  []string
}

func (f *fakeOpener) OpenRecord(ctx context.Context, url string) (string, error) {
	f.opened = append(f.opened, url)
	if url == f.failURL {
		return "", errors.New("record never settled")
	}
	return recordPageHTML, nil
}

func newTestOrchestrator(opener RecordOpener, repo storage.Repository) *Orchestrator {
	selectors := appTestSelectors()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrchestrator(Deps{
		Picker:       survey.NewTermPicker(selectors, nil, 0, logger),
		Paginator:    survey.NewPaginator(selectors, "https://eval.example.edu", 0, 0, logger),
		RecordParser: survey.NewRecordParser(selectors, 0),
		Opener:       opener,
		Repo:         repo,
		Logger:       logger,
	})
}

// fakeRepo records persistence calls in memory.
type fakeRepo struct {
	surveyRows []storage.SurveyRow
	countCalls int
}

func (r *fakeRepo) UpsertSurveyRow(ctx context.Context, row *storage.SurveyRow) (bool, bool, error) {
	r.surveyRows = append(r.surveyRows, *row)
	return true, false, nil
}

func (r *fakeRepo) UpsertProfessor(ctx context.Context, prof *storage.ProfessorRow) (bool, bool, error) {
	return true, false, nil
}

func (r *fakeRepo) ReplaceReviews(ctx context.Context, professorID string, reviews []storage.ReviewRow) error {
	return nil
}

func (r *fakeRepo) SurveyRowCount(ctx context.Context, term string) (int, error) {
	r.countCalls++
	return len(r.surveyRows), nil
}

func (r *fakeRepo) Close() error { return nil }

func TestRunSurveysCompleteRun(t *testing.T) {
	opener := &fakeOpener{}
	o := newTestOrchestrator(opener, nil)

	report, err := o.RunSurveys(context.Background(), &listingView{selectors: appTestSelectors()})
	if err != nil {
		t.Fatalf("RunSurveys() error = %v", err)
	}

	if report.Partial {
		t.Error("Partial = true for a clean run")
	}
	if report.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", report.TotalRows)
	}
	if len(report.Terms) != 1 {
		t.Fatalf("Terms = %d entries, want 1", len(report.Terms))
	}

	tr := report.Terms[0]
	if tr.Term != "Fall 2023" || tr.Links != 2 || tr.Records != 2 || len(tr.Failures) != 0 {
		t.Errorf("TermReport = %+v", tr)
	}
	if len(opener.opened) != 2 {
		t.Errorf("opened %d records, want 2", len(opener.opened))
	}
}

func TestRunSurveysRecordFailureIsPartial(t *testing.T) {
	opener := &fakeOpener{failURL: "https://eval.example.edu/eval/r/1"}
	o := newTestOrchestrator(opener, nil)

	report, err := o.RunSurveys(context.Background(), &listingView{selectors: appTestSelectors()})
	if err != nil {
		t.Fatalf("RunSurveys() error = %v", err)
	}

	if !report.Partial {
		t.Error("Partial = false after a record failure")
	}
	if report.TotalRows != 1 {
		t.Errorf("TotalRows = %d, want 1 (the surviving record)", report.TotalRows)
	}

	tr := report.Terms[0]
	if len(tr.Failures) != 1 {
		t.Fatalf("Failures = %d, want 1", len(tr.Failures))
	}
	if tr.Failures[0].Stage != "record" {
		t.Errorf("Failure.Stage = %q, want %q", tr.Failures[0].Stage, "record")
	}
	if tr.Failures[0].Ref != "https://eval.example.edu/eval/r/1" {
		t.Errorf("Failure.Ref = %q", tr.Failures[0].Ref)
	}
}

func TestRunSurveysProceedsPastStuckReset(t *testing.T) {
	// A failed first-page reset is best-effort: the term is harvested from
	// whatever page is current, with a warning rather than a failure.
	opener := &fakeOpener{}
	o := newTestOrchestrator(opener, nil)

	report, err := o.RunSurveys(context.Background(), &listingView{
		selectors:  appTestSelectors(),
		stuckReset: true,
	})
	if err != nil {
		t.Fatalf("RunSurveys() error = %v", err)
	}

	if report.Partial {
		t.Error("Partial = true, want false for a reset-only hiccup")
	}
	if report.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", report.TotalRows)
	}

	tr := report.Terms[0]
	if tr.Links != 2 || tr.Records != 2 {
		t.Errorf("TermReport = %+v, want 2 links and 2 records", tr)
	}
	for _, failure := range tr.Failures {
		if failure.Stage == "activate" {
			t.Errorf("unexpected activate-stage failure: %+v", failure)
		}
	}
}

func TestRunSurveysPersistsRows(t *testing.T) {
	repo := &fakeRepo{}
	o := newTestOrchestrator(&fakeOpener{}, repo)

	report, err := o.RunSurveys(context.Background(), &listingView{selectors: appTestSelectors()})
	if err != nil {
		t.Fatalf("RunSurveys() error = %v", err)
	}
	if report.Partial {
		t.Error("Partial = true for a clean run")
	}

	if len(repo.surveyRows) != 2 {
		t.Fatalf("upserted %d rows, want 2", len(repo.surveyRows))
	}
	row := repo.surveyRows[0]
	if row.Term != "Fall 2023" || row.Instructor != "Jane Doe" {
		t.Errorf("stored row = %+v", row)
	}
	if row.CheckSum == "" || len(row.CheckSum) != 64 {
		t.Errorf("CheckSum = %q, want a 64-char hash", row.CheckSum)
	}
	if repo.countCalls != 1 {
		t.Errorf("SurveyRowCount calls = %d, want 1 (term summary)", repo.countCalls)
	}
}

func TestRunSurveysCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := newTestOrchestrator(&fakeOpener{}, nil)
	report, err := o.RunSurveys(ctx, &listingView{selectors: appTestSelectors()})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunSurveys() error = %v, want context.Canceled", err)
	}
	if !report.Partial {
		t.Error("Partial = false for a cancelled run")
	}
}
