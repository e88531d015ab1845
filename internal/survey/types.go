package survey

import "context"

// NotAvailable is the placeholder for identity fields the record page does
// not carry.
const NotAvailable = "N/A"

// Term is one reporting period from the survey drop-down.
type Term struct {
	Label string
	Value string // option value attribute, used to activate the term
	Index int    // position within the drop-down, placeholder included
}

// RecordLink is an absolute URL identifying one survey record.
type RecordLink string

type QuestionScore struct {
	Question string
	Diff     float64 // instructor mean minus reference mean, 1 decimal
}

// Row is one flattened survey record.
type Row struct {
	Term        string
	URL         string
	Instructor  string
	CourseTitle string
	Section     string
	CourseID    string
	Scores      []QuestionScore
}

type Selectors struct {
	TermSelect     string `yaml:"term_select"`
	TermOptions    string `yaml:"term_options"`
	ResultRows     string `yaml:"result_rows"`
	PageLinks      string `yaml:"page_links"`
	ActivePage     string `yaml:"active_page"`
	NextEnabled    string `yaml:"next_enabled"`
	PrevEnabled    string `yaml:"prev_enabled"`
	DetailsList    string `yaml:"details_list"`
	ChartQuestions string `yaml:"chart_questions"`
	ChartRatings   string `yaml:"chart_ratings"`
}

// View is the rendered-content accessor the pipeline drives. The browser
// package provides the live implementation; tests substitute fakes. Every
// method carries a context because each one may block on the remote view.
type View interface {
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	ClickText(ctx context.Context, selector, pattern string) error
	Exists(ctx context.Context, selector string) (bool, error)
	ExistsText(ctx context.Context, selector, pattern string) (bool, error)
	WaitStable(ctx context.Context) error
}
