package models

import (
	"time"

	"gorm.io/gorm"
)

// Segment is a bounded span of extracted document text, the unit of
// embedding and retrieval. IDs are assigned in reading order, so a lower ID
// always means an earlier position in the source document.
type Segment struct {
	ID   int    `json:"id"`
	Page int    `json:"page"`
	Text string `json:"text"`
}

// QuizQuestion is one generated multiple-choice question. AnswerIndex points
// into Choices; the order of the choices is significant.
type QuizQuestion struct {
	Topic       string   `json:"topic"`
	Prompt      string   `json:"question"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation,omitempty"`
}

// SessionPhase is a state of the quiz session state machine.
type SessionPhase string

const (
	PhaseNoDocument         SessionPhase = "no_document"
	PhaseDocumentLoaded     SessionPhase = "document_loaded"
	PhaseParametersSelected SessionPhase = "parameters_selected"
	PhaseQuizGenerated      SessionPhase = "quiz_generated"
	PhaseQuizInProgress     SessionPhase = "quiz_in_progress"
	PhaseQuizComplete       SessionPhase = "quiz_complete"
)

// SessionState holds everything one browser session accumulates between
// upload and quiz completion. It is only ever mutated by the handlers.
type SessionState struct {
	Phase         SessionPhase
	DocumentName  string
	Segments      []Segment
	Topic         string
	QuestionCount int
	QuizID        string
	Questions     []QuizQuestion
	Current       int
	Score         int
	Answered      map[int]bool
	Recorded      bool // final score already persisted
}

// NewSessionState returns a fresh session in the initial phase.
func NewSessionState() *SessionState {
	return &SessionState{
		Phase:    PhaseNoDocument,
		Answered: map[int]bool{},
	}
}

// Quiz is a persisted record of a generated quiz.
type Quiz struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Topic        string    `json:"topic"`
	PDFName      string    `json:"pdf_name"`
	NumQuestions int       `json:"num_questions"`
	CreatedAt    time.Time `json:"created_at"`
}

// QuizQuestionRecord is a persisted question belonging to a Quiz.
type QuizQuestionRecord struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	QuizID      string    `gorm:"index" json:"quiz_id"`
	Position    int       `json:"position"`
	Prompt      string    `json:"question"`
	Choices     string    `json:"choices"` // JSON-encoded array of choices
	AnswerIndex int       `json:"answer_index"`
	Explanation string    `json:"explanation,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attempt records the final score of one completed quiz session.
type Attempt struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	QuizID    string    `gorm:"index" json:"quiz_id"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// AutoMigrate runs all migrations
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Quiz{},
		&QuizQuestionRecord{},
		&Attempt{},
	)
}
