package checksum

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// SurveyRowHash hashes the fields that make a survey row meaningful.
// Formula: SHA256(url|instructor|course_title|section|course_id|scores)
func (g *Generator) SurveyRowHash(url, instructor, courseTitle, section, courseID, scoresJSON string) string {
	content := strings.Join([]string{url, instructor, courseTitle, section, courseID, scoresJSON}, "|")
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// ProfessorHash hashes the scalar profile fields plus the tag set.
// Formula: SHA256(id|num_ratings|avg|wta|difficulty|tags)
func (g *Generator) ProfessorHash(id string, numRatings int, avgRating, wouldTakeAgain, difficulty, tagsJSON string) string {
	content := fmt.Sprintf("%s|%d|%s|%s|%s|%s", id, numRatings, avgRating, wouldTakeAgain, difficulty, tagsJSON)
	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// VerifySurveyRowHash checks a stored hash against recomputed content.
func (g *Generator) VerifySurveyRowHash(expectedHash, url, instructor, courseTitle, section, courseID, scoresJSON string) bool {
	return g.SurveyRowHash(url, instructor, courseTitle, section, courseID, scoresJSON) == expectedHash
}
