package storage

import (
	"context"
	"database/sql"
)

// SurveyRow is one flattened survey record prepared for persistence.
// Question scores travel as a JSON column because the question set varies
// per term.
type SurveyRow struct {
	Term        string
	RecordURL   string
	Instructor  string
	CourseTitle string
	Section     string
	CourseID    string
	ScoresJSON  string
	CheckSum    string // SHA256 of the row content
}

// ProfessorRow is one extracted profile prepared for persistence. Optional
// scalars map to NULL, never to a fake zero.
type ProfessorRow struct {
	ProfessorID       string
	NumRatings        int
	AvgRating         sql.NullFloat64
	WouldTakeAgainPct sql.NullFloat64
	Difficulty        sql.NullFloat64
	TagsJSON          string
	CheckSum          string
}

// ReviewRow is one review projected onto the fixed review schema.
type ReviewRow struct {
	ProfessorID       string
	Attendance        string
	ClarityColor      string
	EasyColor         string
	HelpColor         string
	OnlineClass       string
	Quality           string
	RClarity          float64
	RClass            string
	RComments         string
	RDate             string
	REasy             float64
	RHelpful          float64
	ROverall          float64
	RWouldTakeAgain   string
	TakenForCredit    string
	TeacherGrade      string
	TeacherRatingTags string
}

// Repository persists extraction results.
type Repository interface {
	// UpsertSurveyRow saves or updates one survey row, keyed by record URL.
	UpsertSurveyRow(ctx context.Context, row *SurveyRow) (isNew bool, isUpdated bool, err error)

	// UpsertProfessor saves or updates one professor profile.
	UpsertProfessor(ctx context.Context, prof *ProfessorRow) (isNew bool, isUpdated bool, err error)

	// ReplaceReviews swaps the stored review set for a professor.
	ReplaceReviews(ctx context.Context, professorID string, reviews []ReviewRow) error

	// SurveyRowCount reports how many rows are stored for a term.
	SurveyRowCount(ctx context.Context, term string) (int, error)

	Close() error
}
