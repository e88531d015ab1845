package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"courseval-parser/internal/storage"
)

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *slog.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

// UpsertSurveyRow saves or updates one survey row, keyed by record URL.
func (r *Repository) UpsertSurveyRow(ctx context.Context, row *storage.SurveyRow) (isNew bool, isUpdated bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `
		MERGE INTO TblSurveyRows AS target
		USING (SELECT @RecordURL AS RecordURL) AS source
		ON target.[RecordURL] = source.RecordURL
		WHEN MATCHED AND target.[CheckSum] <> @CheckSum THEN
			UPDATE SET
				[Term] = @Term,
				[Instructor] = @Instructor,
				[CourseTitle] = @CourseTitle,
				[Section] = @Section,
				[CourseID] = @CourseID,
				[Scores] = @Scores,
				[CheckSum] = @CheckSum
		WHEN NOT MATCHED THEN
			INSERT ([Term], [RecordURL], [Instructor], [CourseTitle], [Section], [CourseID], [Scores], [CheckSum])
			VALUES (@Term, @RecordURL, @Instructor, @CourseTitle, @Section, @CourseID, @Scores, @CheckSum)
		OUTPUT $action;
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return false, false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer r.closeStmt(stmt)

	var action sql.NullString
	err = stmt.QueryRowContext(ctx,
		sql.Named("Term", row.Term),
		sql.Named("RecordURL", row.RecordURL),
		sql.Named("Instructor", row.Instructor),
		sql.Named("CourseTitle", row.CourseTitle),
		sql.Named("Section", row.Section),
		sql.Named("CourseID", row.CourseID),
		sql.Named("Scores", row.ScoresJSON),
		sql.Named("CheckSum", row.CheckSum),
	).Scan(&action)
	if err != nil {
		if err == sql.ErrNoRows {
			// Matched but checksum unchanged: nothing written.
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	switch action.String {
	case "INSERT":
		isNew = true
	case "UPDATE":
		isUpdated = true
	}
	return isNew, isUpdated, nil
}

// UpsertProfessor saves or updates one professor profile.
func (r *Repository) UpsertProfessor(ctx context.Context, prof *storage.ProfessorRow) (isNew bool, isUpdated bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `
		MERGE INTO TblProfessors AS target
		USING (SELECT @ProfessorID AS ProfessorID) AS source
		ON target.[ProfessorID] = source.ProfessorID
		WHEN MATCHED AND target.[CheckSum] <> @CheckSum THEN
			UPDATE SET
				[NumRatings] = @NumRatings,
				[AvgRating] = @AvgRating,
				[WouldTakeAgainPct] = @WouldTakeAgainPct,
				[Difficulty] = @Difficulty,
				[Tags] = @Tags,
				[CheckSum] = @CheckSum
		WHEN NOT MATCHED THEN
			INSERT ([ProfessorID], [NumRatings], [AvgRating], [WouldTakeAgainPct], [Difficulty], [Tags], [CheckSum])
			VALUES (@ProfessorID, @NumRatings, @AvgRating, @WouldTakeAgainPct, @Difficulty, @Tags, @CheckSum)
		OUTPUT $action;
	`

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return false, false, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer r.closeStmt(stmt)

	var action sql.NullString
	err = stmt.QueryRowContext(ctx,
		sql.Named("ProfessorID", prof.ProfessorID),
		sql.Named("NumRatings", prof.NumRatings),
		sql.Named("AvgRating", prof.AvgRating),
		sql.Named("WouldTakeAgainPct", prof.WouldTakeAgainPct),
		sql.Named("Difficulty", prof.Difficulty),
		sql.Named("Tags", prof.TagsJSON),
		sql.Named("CheckSum", prof.CheckSum),
	).Scan(&action)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to execute upsert: %w", err)
	}

	switch action.String {
	case "INSERT":
		isNew = true
	case "UPDATE":
		isUpdated = true
	}
	return isNew, isUpdated, nil
}

// ReplaceReviews swaps the stored review set for a professor inside one
// transaction.
func (r *Repository) ReplaceReviews(ctx context.Context, professorID string, reviews []storage.ReviewRow) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Error("Failed to rollback transaction", "error", err.Error())
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM TblReviews WHERE ProfessorID = @ProfessorID`,
		sql.Named("ProfessorID", professorID),
	); err != nil {
		return fmt.Errorf("failed to delete old reviews: %w", err)
	}

	insert := `
		INSERT INTO TblReviews (
			[ProfessorID], [Attendance], [ClarityColor], [EasyColor], [HelpColor],
			[OnlineClass], [Quality], [RClarity], [RClass], [RComments], [RDate],
			[REasy], [RHelpful], [ROverall], [RWouldTakeAgain], [TakenForCredit],
			[TeacherGrade], [TeacherRatingTags]
		) VALUES (
			@ProfessorID, @Attendance, @ClarityColor, @EasyColor, @HelpColor,
			@OnlineClass, @Quality, @RClarity, @RClass, @RComments, @RDate,
			@REasy, @RHelpful, @ROverall, @RWouldTakeAgain, @TakenForCredit,
			@TeacherGrade, @TeacherRatingTags
		)
	`

	for i := range reviews {
		review := &reviews[i]
		if _, err := tx.ExecContext(ctx, insert,
			sql.Named("ProfessorID", professorID),
			sql.Named("Attendance", review.Attendance),
			sql.Named("ClarityColor", review.ClarityColor),
			sql.Named("EasyColor", review.EasyColor),
			sql.Named("HelpColor", review.HelpColor),
			sql.Named("OnlineClass", review.OnlineClass),
			sql.Named("Quality", review.Quality),
			sql.Named("RClarity", review.RClarity),
			sql.Named("RClass", review.RClass),
			sql.Named("RComments", review.RComments),
			sql.Named("RDate", review.RDate),
			sql.Named("REasy", review.REasy),
			sql.Named("RHelpful", review.RHelpful),
			sql.Named("ROverall", review.ROverall),
			sql.Named("RWouldTakeAgain", review.RWouldTakeAgain),
			sql.Named("TakenForCredit", review.TakenForCredit),
			sql.Named("TeacherGrade", review.TeacherGrade),
			sql.Named("TeacherRatingTags", review.TeacherRatingTags),
		); err != nil {
			return fmt.Errorf("failed to insert review %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reviews: %w", err)
	}
	return nil
}

// SurveyRowCount reports how many rows are stored for a term.
func (r *Repository) SurveyRowCount(ctx context.Context, term string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	stmt, err := r.db.PrepareContext(ctx, `SELECT COUNT(*) FROM TblSurveyRows WHERE Term = @Term`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer r.closeStmt(stmt)

	var count int
	if err := stmt.QueryRowContext(ctx, sql.Named("Term", term)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

func (r *Repository) closeStmt(stmt *sql.Stmt) {
	if err := stmt.Close(); err != nil {
		r.logger.Error("Failed to close statement", "error", err.Error())
	}
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
