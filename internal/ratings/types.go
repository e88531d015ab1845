package ratings

import (
	"database/sql"
	"strconv"
)

// NotAvailable mirrors the sentinel the profile view displays for fields
// with no data yet.
const NotAvailable = "N/A"

// NullFloat is a scalar that may be absent; absent values render as the
// "N/A" sentinel instead of a fake zero.
type NullFloat struct {
	Value float64
	Valid bool
}

func Float(v float64) NullFloat {
	return NullFloat{Value: v, Valid: true}
}

func (f NullFloat) String() string {
	if !f.Valid {
		return NotAvailable
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

func (f NullFloat) NullFloat64() sql.NullFloat64 {
	return sql.NullFloat64{Float64: f.Value, Valid: f.Valid}
}

// Professor is one extracted profile plus its attached review rows.
type Professor struct {
	ID             string
	NumRatings     int
	AvgRating      NullFloat
	WouldTakeAgain NullFloat // fraction in [0, 1]
	Difficulty     NullFloat
	Tags           []string
	Reviews        []Review
}

// Review is one review row projected onto the fields the pipeline keeps;
// everything else the data API returns is discarded.
type Review struct {
	Attendance        string  `json:"attendance"`
	ClarityColor      string  `json:"clarityColor"`
	EasyColor         string  `json:"easyColor"`
	HelpColor         string  `json:"helpColor"`
	OnlineClass       string  `json:"onlineClass"`
	Quality           string  `json:"quality"`
	RClarity          float64 `json:"rClarity"`
	RClass            string  `json:"rClass"`
	RComments         string  `json:"rComments"`
	RDate             string  `json:"rDate"`
	REasy             float64 `json:"rEasy"`
	RHelpful          float64 `json:"rHelpful"`
	ROverall          float64 `json:"rOverall"`
	RWouldTakeAgain   string  `json:"rWouldTakeAgain"`
	TakenForCredit    string  `json:"takenForCredit"`
	TeacherGrade      string  `json:"teacherGrade"`
	TeacherRatingTags string  `json:"teacherRatingTags"`
}

// RosterEntry identifies one professor from the per-school roster feed.
type RosterEntry struct {
	ID          int    `json:"tid"`
	FirstName   string `json:"tFname"`
	MiddleName  string `json:"tMiddlename"`
	LastName    string `json:"tLname"`
	Department  string `json:"tDept"`
	Institution string `json:"institution_name"`
	SchoolID    int    `json:"tSid"`
}

// Selectors are fallback lists: the profile markup uses generated class
// names that shift between deploys, so each field probes candidates in
// order.
type Selectors struct {
	NumRatings      []string `yaml:"num_ratings"`
	AvgRating       []string `yaml:"avg_rating"`
	FeedbackNumbers []string `yaml:"feedback_numbers"`
	TagsContainer   []string `yaml:"tags_container"`
	Tags            []string `yaml:"tags"`
}
