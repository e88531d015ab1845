package csvexport

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"courseval-parser/internal/ratings"
	"courseval-parser/internal/survey"
)

// Writer exports extraction results as delimited text files.
type Writer struct {
	dir string
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &Writer{dir: dir}, nil
}

// WriteSurveyRows writes one file with the identity columns followed by a
// column per question, in first-seen order. Questions a row did not answer
// stay empty.
func (w *Writer) WriteSurveyRows(filename string, rows []*survey.Row) error {
	var questions []string
	seen := make(map[string]int)
	for _, row := range rows {
		for _, score := range row.Scores {
			if _, ok := seen[score.Question]; !ok {
				seen[score.Question] = len(questions)
				questions = append(questions, score.Question)
			}
		}
	}

	header := append([]string{"Term", "URL", "Instructor", "Course Title", "Section", "Course ID"}, questions...)
	records := [][]string{header}

	for _, row := range rows {
		record := make([]string, len(header))
		record[0] = row.Term
		record[1] = row.URL
		record[2] = row.Instructor
		record[3] = row.CourseTitle
		record[4] = row.Section
		record[5] = row.CourseID
		for _, score := range row.Scores {
			record[6+seen[score.Question]] = strconv.FormatFloat(score.Diff, 'f', 1, 64)
		}
		records = append(records, record)
	}

	return w.writeFile(filename, records)
}

// WriteProfessors writes the scalar profile fields; optional scalars render
// as the "N/A" sentinel.
func (w *Writer) WriteProfessors(filename string, profs []*ratings.Professor) error {
	records := [][]string{{
		"ID", "Number of Ratings", "Average Rating (Out of 5)",
		"Would Take Again (Percent)", "Level of Difficulty (Out of 5)",
		"Popular Tags", "Review Count",
	}}

	for _, prof := range profs {
		records = append(records, []string{
			prof.ID,
			strconv.Itoa(prof.NumRatings),
			prof.AvgRating.String(),
			prof.WouldTakeAgain.String(),
			prof.Difficulty.String(),
			strings.Join(prof.Tags, "; "),
			strconv.Itoa(len(prof.Reviews)),
		})
	}

	return w.writeFile(filename, records)
}

// WriteReviews writes every professor's review rows into one file.
func (w *Writer) WriteReviews(filename string, profs []*ratings.Professor) error {
	records := [][]string{{
		"Professor ID", "Attendance", "Clarity (color)", "Easy (color)", "Help (color)",
		"Online Class", "Quality", "Clarity (rating)", "Class (rating)", "Comments",
		"Date", "Easy Rating", "Helpful Rating", "Overall Rating", "Would Take Again?",
		"Taken for Credit?", "Grade in Class", "Teacher Rating Tags",
	}}

	for _, prof := range profs {
		for _, review := range prof.Reviews {
			records = append(records, []string{
				prof.ID,
				review.Attendance,
				review.ClarityColor,
				review.EasyColor,
				review.HelpColor,
				review.OnlineClass,
				review.Quality,
				strconv.FormatFloat(review.RClarity, 'f', -1, 64),
				review.RClass,
				review.RComments,
				review.RDate,
				strconv.FormatFloat(review.REasy, 'f', -1, 64),
				strconv.FormatFloat(review.RHelpful, 'f', -1, 64),
				strconv.FormatFloat(review.ROverall, 'f', -1, 64),
				review.RWouldTakeAgain,
				review.TakenForCredit,
				review.TeacherGrade,
				review.TeacherRatingTags,
			})
		}
	}

	return w.writeFile(filename, records)
}

func (w *Writer) writeFile(filename string, records [][]string) error {
	path := filepath.Join(w.dir, filename)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close %s: %v", path, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
