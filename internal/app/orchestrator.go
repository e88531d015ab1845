package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"courseval-parser/internal/checksum"
	"courseval-parser/internal/ratings"
	"courseval-parser/internal/storage"
	"courseval-parser/internal/storage/csvexport"
	"courseval-parser/internal/survey"
)

// RecordOpener renders one record page and returns its content frame HTML.
type RecordOpener interface {
	OpenRecord(ctx context.Context, url string) (string, error)
}

// Failure is one recorded extraction failure, attributed to the stage and
// reference it happened at.
type Failure struct {
	Term  string
	Stage string
	Ref   string
	Err   string
}

// TermReport aggregates one term's harvest.
type TermReport struct {
	Term     string
	Links    int
	Records  int
	Failures []Failure
}

// SurveyReport is the manifest of one survey run.
type SurveyReport struct {
	Terms      []TermReport
	TotalRows  int
	Partial    bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// RatingsReport is the manifest of one ratings run.
type RatingsReport struct {
	Professors int
	Reviews    int
	Failures   []Failure
	Partial    bool
	StartedAt  time.Time
	FinishedAt time.Time
}

type Orchestrator struct {
	picker       *survey.TermPicker
	paginator    *survey.Paginator
	recordParser *survey.RecordParser
	opener       RecordOpener
	client       *ratings.Client
	profiles     *ratings.ProfileParser
	repo         storage.Repository // nil when storage is disabled
	exporter     *csvexport.Writer  // nil when export is disabled
	hasher       *checksum.Generator
	logger       *slog.Logger
}

type Deps struct {
	Picker       *survey.TermPicker
	Paginator    *survey.Paginator
	RecordParser *survey.RecordParser
	Opener       RecordOpener
	Client       *ratings.Client
	Profiles     *ratings.ProfileParser
	Repo         storage.Repository
	Exporter     *csvexport.Writer
	Logger       *slog.Logger
}

func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		picker:       deps.Picker,
		paginator:    deps.Paginator,
		recordParser: deps.RecordParser,
		opener:       deps.Opener,
		client:       deps.Client,
		profiles:     deps.Profiles,
		repo:         deps.Repo,
		exporter:     deps.Exporter,
		hasher:       checksum.NewGenerator(),
		logger:       deps.Logger,
	}
}

// RunSurveys walks every reporting period on the listing view, harvests the
// record links page by page and extracts one row per record. A failed term
// or record is logged, recorded in the manifest and skipped; the run keeps
// going with whatever it can still reach.
func (o *Orchestrator) RunSurveys(ctx context.Context, listing survey.View) (*SurveyReport, error) {
	report := &SurveyReport{StartedAt: time.Now().UTC()}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	terms, err := o.picker.Terms(ctx, listing)
	if err != nil {
		report.Partial = true
		return report, fmt.Errorf("enumerate terms: %w", err)
	}

	var allRows []*survey.Row

	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			report.Partial = true
			return report, err
		}

		o.logger.Info("Processing term", "term", term.Label)
		tr := TermReport{Term: term.Label}

		if err := o.picker.Activate(ctx, listing, term); err != nil {
			var resetErr *survey.ResetError
			if errors.As(err, &resetErr) {
				// Best-effort reset failed; the listing is still usable
				// from whatever page is current.
				o.logger.Warn("First-page reset failed",
					"term", term.Label,
					"reason", resetErr.Reason,
				)
			} else {
				o.logger.Error("Term activation failed",
					"term", term.Label,
					"error", err.Error(),
				)
				tr.Failures = append(tr.Failures, Failure{
					Term: term.Label, Stage: "activate", Err: err.Error(),
				})
				report.Terms = append(report.Terms, tr)
				report.Partial = true
				continue
			}
		}

		links, err := o.paginator.CollectLinks(ctx, listing)
		if err != nil {
			o.logger.Error("Link harvest stopped early",
				"term", term.Label,
				"links_kept", len(links),
				"error", err.Error(),
			)
			tr.Failures = append(tr.Failures, Failure{
				Term: term.Label, Stage: "paginate", Err: err.Error(),
			})
			report.Partial = true
		}
		tr.Links = len(links)

		for _, link := range links {
			if err := ctx.Err(); err != nil {
				report.Terms = append(report.Terms, tr)
				report.Partial = true
				return report, err
			}

			row, err := o.extractRecord(ctx, link, term.Label)
			if err != nil {
				o.logger.Error("Record extraction failed",
					"term", term.Label,
					"url", string(link),
					"error", err.Error(),
				)
				tr.Failures = append(tr.Failures, Failure{
					Term: term.Label, Stage: "record", Ref: string(link), Err: err.Error(),
				})
				report.Partial = true
				continue
			}

			tr.Records++
			allRows = append(allRows, row)

			if err := o.persistSurveyRow(ctx, row); err != nil {
				o.logger.Error("Row persistence failed",
					"term", term.Label,
					"url", row.URL,
					"error", err.Error(),
				)
				tr.Failures = append(tr.Failures, Failure{
					Term: term.Label, Stage: "store", Ref: row.URL, Err: err.Error(),
				})
				report.Partial = true
			}
		}

		o.logger.Info("Term completed",
			"term", term.Label,
			"links", tr.Links,
			"records", tr.Records,
			"failures", len(tr.Failures),
		)
		if o.repo != nil {
			if stored, err := o.repo.SurveyRowCount(ctx, term.Label); err != nil {
				o.logger.Warn("Stored-row count unavailable",
					"term", term.Label,
					"error", err.Error(),
				)
			} else {
				o.logger.Info("Term rows in storage",
					"term", term.Label,
					"stored_rows", stored,
				)
			}
		}
		report.Terms = append(report.Terms, tr)
	}

	report.TotalRows = len(allRows)

	if o.exporter != nil && len(allRows) > 0 {
		if err := o.exporter.WriteSurveyRows("survey_rows.csv", allRows); err != nil {
			o.logger.Error("CSV export failed", "error", err.Error())
			report.Partial = true
		}
	}

	return report, nil
}

func (o *Orchestrator) extractRecord(ctx context.Context, link survey.RecordLink, term string) (*survey.Row, error) {
	html, err := o.opener.OpenRecord(ctx, string(link))
	if err != nil {
		return nil, fmt.Errorf("open record: %w", err)
	}
	return o.recordParser.Parse(html, link, term)
}

func (o *Orchestrator) persistSurveyRow(ctx context.Context, row *survey.Row) error {
	if o.repo == nil {
		return nil
	}

	scoresJSON, err := json.Marshal(row.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}

	dto := &storage.SurveyRow{
		Term:        row.Term,
		RecordURL:   row.URL,
		Instructor:  row.Instructor,
		CourseTitle: row.CourseTitle,
		Section:     row.Section,
		CourseID:    row.CourseID,
		ScoresJSON:  string(scoresJSON),
	}
	dto.CheckSum = o.hasher.SurveyRowHash(
		dto.RecordURL, dto.Instructor, dto.CourseTitle,
		dto.Section, dto.CourseID, dto.ScoresJSON,
	)

	isNew, isUpdated, err := o.repo.UpsertSurveyRow(ctx, dto)
	if err != nil {
		return err
	}
	o.logger.Debug("Row stored",
		"url", dto.RecordURL,
		"is_new", isNew,
		"is_updated", isUpdated,
	)
	return nil
}

// RunRatings extracts the profile and the full review feed for every
// professor. An empty id list falls back to the school roster.
func (o *Orchestrator) RunRatings(ctx context.Context, professorIDs []string) (*RatingsReport, error) {
	report := &RatingsReport{StartedAt: time.Now().UTC()}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	if len(professorIDs) == 0 {
		roster, err := o.client.FetchRoster(ctx)
		if err != nil {
			report.Partial = true
			return report, fmt.Errorf("fetch roster: %w", err)
		}
		for _, entry := range roster {
			professorIDs = append(professorIDs, fmt.Sprintf("%d", entry.ID))
		}
		o.logger.Info("Roster fetched", "professors", len(professorIDs))
	}

	var profs []*ratings.Professor

	for _, id := range professorIDs {
		if err := ctx.Err(); err != nil {
			report.Partial = true
			return report, err
		}

		prof, err := o.extractProfessor(ctx, id)
		if err != nil {
			o.logger.Error("Professor extraction failed",
				"professor_id", id,
				"error", err.Error(),
			)
			report.Failures = append(report.Failures, Failure{
				Stage: "profile", Ref: id, Err: err.Error(),
			})
			report.Partial = true
			continue
		}

		report.Professors++
		report.Reviews += len(prof.Reviews)
		profs = append(profs, prof)

		if err := o.persistProfessor(ctx, prof); err != nil {
			o.logger.Error("Professor persistence failed",
				"professor_id", id,
				"error", err.Error(),
			)
			report.Failures = append(report.Failures, Failure{
				Stage: "store", Ref: id, Err: err.Error(),
			})
			report.Partial = true
		}
	}

	if o.exporter != nil && len(profs) > 0 {
		if err := o.exporter.WriteProfessors("professors.csv", profs); err != nil {
			o.logger.Error("CSV export failed", "file", "professors.csv", "error", err.Error())
			report.Partial = true
		}
		if err := o.exporter.WriteReviews("reviews.csv", profs); err != nil {
			o.logger.Error("CSV export failed", "file", "reviews.csv", "error", err.Error())
			report.Partial = true
		}
	}

	return report, nil
}

func (o *Orchestrator) extractProfessor(ctx context.Context, id string) (*ratings.Professor, error) {
	html, err := o.client.FetchProfileHTML(ctx, id)
	if err != nil {
		return nil, err
	}

	prof, err := o.profiles.Parse(html, id)
	if err != nil {
		return nil, err
	}

	prof.Reviews, err = o.client.FetchReviews(ctx, id)
	if err != nil {
		return nil, err
	}

	o.logger.Info("Professor extracted",
		"professor_id", id,
		"num_ratings", prof.NumRatings,
		"avg_rating", prof.AvgRating.String(),
		"reviews", len(prof.Reviews),
	)
	return prof, nil
}

func (o *Orchestrator) persistProfessor(ctx context.Context, prof *ratings.Professor) error {
	if o.repo == nil {
		return nil
	}

	tagsJSON, err := json.Marshal(prof.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	dto := &storage.ProfessorRow{
		ProfessorID:       prof.ID,
		NumRatings:        prof.NumRatings,
		AvgRating:         prof.AvgRating.NullFloat64(),
		WouldTakeAgainPct: prof.WouldTakeAgain.NullFloat64(),
		Difficulty:        prof.Difficulty.NullFloat64(),
		TagsJSON:          string(tagsJSON),
	}
	dto.CheckSum = o.hasher.ProfessorHash(
		dto.ProfessorID, dto.NumRatings,
		prof.AvgRating.String(), prof.WouldTakeAgain.String(), prof.Difficulty.String(),
		dto.TagsJSON,
	)

	isNew, isUpdated, err := o.repo.UpsertProfessor(ctx, dto)
	if err != nil {
		return err
	}
	o.logger.Debug("Professor stored",
		"professor_id", dto.ProfessorID,
		"is_new", isNew,
		"is_updated", isUpdated,
	)

	reviewRows := make([]storage.ReviewRow, 0, len(prof.Reviews))
	for _, review := range prof.Reviews {
		reviewRows = append(reviewRows, storage.ReviewRow{
			ProfessorID:       prof.ID,
			Attendance:        review.Attendance,
			ClarityColor:      review.ClarityColor,
			EasyColor:         review.EasyColor,
			HelpColor:         review.HelpColor,
			OnlineClass:       review.OnlineClass,
			Quality:           review.Quality,
			RClarity:          review.RClarity,
			RClass:            review.RClass,
			RComments:         review.RComments,
			RDate:             review.RDate,
			REasy:             review.REasy,
			RHelpful:          review.RHelpful,
			ROverall:          review.ROverall,
			RWouldTakeAgain:   review.RWouldTakeAgain,
			TakenForCredit:    review.TakenForCredit,
			TeacherGrade:      review.TeacherGrade,
			TeacherRatingTags: review.TeacherRatingTags,
		})
	}
	return o.repo.ReplaceReviews(ctx, prof.ID, reviewRows)
}
