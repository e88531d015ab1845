package survey

import "fmt"

// TimeoutError reports a view that never settled within its bound.
type TimeoutError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: view did not settle after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// NoLinkError reports a result row that carries no record hyperlink. The
// listing contract says every row links to its report, so this is treated
// as a hard extraction failure rather than a silent skip.
type NoLinkError struct {
	Page int
	Row  int
}

func (e *NoLinkError) Error() string {
	return fmt.Sprintf("page %d: result row %d has no record link", e.Page, e.Row)
}

// SchemaMismatchError reports a chart whose numeric series cannot be split
// into two halves of the question count.
type SchemaMismatchError struct {
	Chart     string
	Questions int
	Values    int
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("chart %s: %d values cannot pair %d questions", e.Chart, e.Values, e.Questions)
}

// ValueError reports a chart value that failed numeric parsing.
type ValueError struct {
	Chart string
	Index int
	Text  string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("chart %s: value %d: cannot parse %q", e.Chart, e.Index, e.Text)
}

// ResetError reports a first-page reset that could not locate page 1.
// Callers log it and proceed with whatever page is current.
type ResetError struct {
	Reason string
}

func (e *ResetError) Error() string {
	return fmt.Sprintf("pagination reset: %s", e.Reason)
}
