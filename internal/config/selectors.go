package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"courseval-parser/internal/ratings"
	"courseval-parser/internal/survey"
)

// LoadSurveySelectors loads the survey-site selector set referenced by the
// config.
func (c *Config) LoadSurveySelectors() (*survey.Selectors, error) {
	var selectors survey.Selectors
	if err := loadSelectorsFile(c.Survey.SelectorsFile, &selectors); err != nil {
		return nil, err
	}
	if err := validateSurveySelectors(&selectors); err != nil {
		return nil, err
	}
	return &selectors, nil
}

// LoadRatingsSelectors loads the rating-site selector set referenced by
// the config.
func (c *Config) LoadRatingsSelectors() (*ratings.Selectors, error) {
	var selectors ratings.Selectors
	if err := loadSelectorsFile(c.Ratings.SelectorsFile, &selectors); err != nil {
		return nil, err
	}
	if err := validateRatingsSelectors(&selectors); err != nil {
		return nil, err
	}
	return &selectors, nil
}

func loadSelectorsFile(filePath string, out any) error {
	if filePath == "" {
		return fmt.Errorf("selectors file path is empty")
	}

	// Relative paths resolve against the configs directory.
	if !filepath.IsAbs(filePath) {
		filePath = filepath.Join("configs", filePath)
	}

	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("selectors file not found: %s: %w", filePath, err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open selectors file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			log.Printf("Warning: failed to close selectors file: %v", closeErr)
		}
	}()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("failed to parse selectors YAML: %w", err)
	}
	return nil
}

func validateSurveySelectors(s *survey.Selectors) error {
	if s.TermSelect == "" {
		return fmt.Errorf("term_select is required")
	}
	if s.TermOptions == "" {
		return fmt.Errorf("term_options is required")
	}
	if s.ResultRows == "" {
		return fmt.Errorf("result_rows is required")
	}
	if s.PageLinks == "" {
		return fmt.Errorf("page_links is required")
	}
	if s.ActivePage == "" {
		return fmt.Errorf("active_page is required")
	}
	if s.NextEnabled == "" {
		return fmt.Errorf("next_enabled is required")
	}
	if s.PrevEnabled == "" {
		return fmt.Errorf("prev_enabled is required")
	}
	if s.DetailsList == "" {
		return fmt.Errorf("details_list is required")
	}
	if s.ChartQuestions == "" {
		return fmt.Errorf("chart_questions is required")
	}
	if s.ChartRatings == "" {
		return fmt.Errorf("chart_ratings is required")
	}
	return nil
}

func validateRatingsSelectors(s *ratings.Selectors) error {
	if len(s.NumRatings) == 0 {
		return fmt.Errorf("num_ratings is required")
	}
	if len(s.AvgRating) == 0 {
		return fmt.Errorf("avg_rating is required")
	}
	if len(s.FeedbackNumbers) == 0 {
		return fmt.Errorf("feedback_numbers is required")
	}
	if len(s.TagsContainer) == 0 {
		return fmt.Errorf("tags_container is required")
	}
	if len(s.Tags) == 0 {
		return fmt.Errorf("tags is required")
	}
	return nil
}
