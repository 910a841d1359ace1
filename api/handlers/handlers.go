package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/local/quizforge/api/config"
	"github.com/local/quizforge/api/models"
	"github.com/local/quizforge/api/services"
	"github.com/local/quizforge/api/vectordb"
)

type Handler struct {
	db        *gorm.DB
	cfg       *config.Config
	embedder  services.EmbeddingProvider
	generator services.QuizGenerator
	store     *vectordb.Store
	sessions  *SessionRegistry
}

func New(db *gorm.DB, cfg *config.Config, embedder services.EmbeddingProvider, generator services.QuizGenerator, store *vectordb.Store) *Handler {
	return &Handler{
		db:        db,
		cfg:       cfg,
		embedder:  embedder,
		generator: generator,
		store:     store,
		sessions:  NewSessionRegistry(),
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"embedding_model":  h.embedder.ModelName(),
		"completion_model": h.cfg.CompletionModel,
	})
}

type UploadResponse struct {
	Document string              `json:"document"`
	Segments int                 `json:"segments"`
	Phase    models.SessionPhase `json:"phase"`
}

// UploadPDF ingests an uploaded PDF into segments and moves the session to
// DocumentLoaded. Any previously loaded document and quiz are discarded.
func (h *Handler) UploadPDF(c *gin.Context) {
	sid, _ := h.session(c)

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}

	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are allowed"})
		return
	}

	if file.Size > h.cfg.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File size exceeds upload limit"})
		return
	}

	f, err := file.Open()
	if err != nil {
		log.Error().Err(err).Msg("Failed to open upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.cfg.MaxUploadSize))
	if err != nil {
		log.Error().Err(err).Msg("Failed to read upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}

	segments, err := services.IngestPDF(data, h.cfg.SegmentSize, h.cfg.SegmentOverlap)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// A new document invalidates everything built from the old one.
	h.store.Drop(sid)
	st := h.sessions.Reset(sid)
	st.Phase = models.PhaseDocumentLoaded
	st.DocumentName = file.Filename
	st.Segments = segments

	log.Info().Str("document", file.Filename).Int("segments", len(segments)).Msg("Document ingested")

	c.JSON(http.StatusOK, UploadResponse{
		Document: file.Filename,
		Segments: len(segments),
		Phase:    st.Phase,
	})
}

type ParametersRequest struct {
	Topic         string `json:"topic"`
	QuestionCount int    `json:"question_count"`
}

// SetParameters records the quiz topic and question count, moving the
// session to ParametersSelected.
func (h *Handler) SetParameters(c *gin.Context) {
	_, st := h.session(c)

	var req ParametersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if st.Phase != models.PhaseDocumentLoaded && st.Phase != models.PhaseParametersSelected {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("cannot select parameters in phase %q", st.Phase)})
		return
	}

	if req.QuestionCount <= 0 || req.QuestionCount > h.cfg.MaxQuestions {
		h.respondError(c, fmt.Errorf("%w: question count must be between 1 and %d, got %d",
			models.ErrInvalidParameters, h.cfg.MaxQuestions, req.QuestionCount))
		return
	}

	st.Topic = req.Topic
	st.QuestionCount = req.QuestionCount
	st.Phase = models.PhaseParametersSelected

	c.JSON(http.StatusOK, gin.H{
		"topic":          st.Topic,
		"question_count": st.QuestionCount,
		"phase":          st.Phase,
	})
}

type GenerateResponse struct {
	QuizID        string              `json:"quiz_id,omitempty"`
	QuestionCount int                 `json:"question_count"`
	Phase         models.SessionPhase `json:"phase"`
}

// GenerateQuiz runs the full pipeline: embed the document segments, build
// the vector index, retrieve the segments nearest the topic, and ask the
// completion model for the quiz. On any failure the session stays in
// ParametersSelected and no partial quiz survives.
func (h *Handler) GenerateQuiz(c *gin.Context) {
	sid, st := h.session(c)

	if st.Phase != models.PhaseParametersSelected {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("cannot generate a quiz in phase %q", st.Phase)})
		return
	}

	ctx := c.Request.Context()
	topic := st.Topic
	if topic == "" {
		topic = services.DefaultTopic
	}

	texts := make([]string, len(st.Segments))
	for i, seg := range st.Segments {
		texts[i] = seg.Text
	}

	vectors, err := h.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		h.respondError(c, err)
		return
	}

	index, err := h.store.Build(ctx, sid, st.Segments, vectors)
	if err != nil {
		h.respondError(c, err)
		return
	}

	topicVec, err := h.embedder.Embed(ctx, topic)
	if err != nil {
		h.respondError(c, err)
		return
	}

	retrieved, err := index.Query(ctx, topicVec, h.cfg.RetrievalK)
	if err != nil {
		h.respondError(c, err)
		return
	}

	questions, err := h.generator.Generate(ctx, topic, st.QuestionCount, retrieved)
	if err != nil {
		h.respondError(c, err)
		return
	}

	quizID := h.persistQuiz(topic, st.DocumentName, questions)

	st.QuizID = quizID
	st.Questions = questions
	st.Phase = models.PhaseQuizGenerated
	st.Current = 0
	st.Score = 0
	st.Answered = map[int]bool{}
	st.Recorded = false

	log.Info().Str("topic", topic).Int("questions", len(questions)).Msg("Quiz generated")

	c.JSON(http.StatusOK, GenerateResponse{
		QuizID:        quizID,
		QuestionCount: len(questions),
		Phase:         st.Phase,
	})
}

type QuestionView struct {
	Index    int                 `json:"index"`
	Total    int                 `json:"total"`
	Topic    string              `json:"topic"`
	Question string              `json:"question"`
	Choices  []string            `json:"choices"`
	Answered bool                `json:"answered"`
	Phase    models.SessionPhase `json:"phase"`
}

// CurrentQuestion renders the question at the session's cursor, without the
// correct-answer marker. The first fetch moves the quiz in progress.
func (h *Handler) CurrentQuestion(c *gin.Context) {
	_, st := h.session(c)

	if st.Phase != models.PhaseQuizGenerated && st.Phase != models.PhaseQuizInProgress {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("no quiz in progress in phase %q", st.Phase)})
		return
	}
	st.Phase = models.PhaseQuizInProgress

	q := st.Questions[st.Current]
	c.JSON(http.StatusOK, QuestionView{
		Index:    st.Current,
		Total:    len(st.Questions),
		Topic:    q.Topic,
		Question: q.Prompt,
		Choices:  q.Choices,
		Answered: st.Answered[st.Current],
		Phase:    st.Phase,
	})
}

type AnswerRequest struct {
	Choice *int `json:"choice" binding:"required"`
}

type AnswerResponse struct {
	Correct      bool   `json:"correct"`
	CorrectIndex int    `json:"correct_index"`
	Explanation  string `json:"explanation,omitempty"`
	Score        int    `json:"score"`
}

// Answer checks the submitted choice against the current question. Only the
// first answer to a question counts toward the score; revisiting a question
// never changes it.
func (h *Handler) Answer(c *gin.Context) {
	_, st := h.session(c)

	if st.Phase != models.PhaseQuizGenerated && st.Phase != models.PhaseQuizInProgress {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("no quiz in progress in phase %q", st.Phase)})
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := st.Questions[st.Current]
	if *req.Choice < 0 || *req.Choice >= len(q.Choices) {
		h.respondError(c, fmt.Errorf("%w: choice %d out of range", models.ErrInvalidParameters, *req.Choice))
		return
	}

	st.Phase = models.PhaseQuizInProgress
	correct := *req.Choice == q.AnswerIndex
	if !st.Answered[st.Current] {
		st.Answered[st.Current] = true
		if correct {
			st.Score++
		}
	}

	c.JSON(http.StatusOK, AnswerResponse{
		Correct:      correct,
		CorrectIndex: q.AnswerIndex,
		Explanation:  q.Explanation,
		Score:        st.Score,
	})
}

// NextQuestion advances the cursor; moving past the last question completes
// the quiz.
func (h *Handler) NextQuestion(c *gin.Context) {
	_, st := h.session(c)

	if st.Phase != models.PhaseQuizInProgress {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("no quiz in progress in phase %q", st.Phase)})
		return
	}

	if st.Current+1 >= len(st.Questions) {
		st.Phase = models.PhaseQuizComplete
		c.JSON(http.StatusOK, gin.H{
			"phase": st.Phase,
			"score": st.Score,
			"total": len(st.Questions),
		})
		return
	}

	st.Current++
	c.JSON(http.StatusOK, gin.H{
		"phase": st.Phase,
		"index": st.Current,
		"total": len(st.Questions),
	})
}

// PreviousQuestion moves the cursor back, never below the first question.
func (h *Handler) PreviousQuestion(c *gin.Context) {
	_, st := h.session(c)

	if st.Phase != models.PhaseQuizInProgress {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("no quiz in progress in phase %q", st.Phase)})
		return
	}

	if st.Current > 0 {
		st.Current--
	}
	c.JSON(http.StatusOK, gin.H{
		"phase": st.Phase,
		"index": st.Current,
		"total": len(st.Questions),
	})
}

// Results reports the final score and records the attempt.
func (h *Handler) Results(c *gin.Context) {
	_, st := h.session(c)

	if st.Phase != models.PhaseQuizComplete {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("quiz not complete in phase %q", st.Phase)})
		return
	}

	if !st.Recorded {
		st.Recorded = true
		attempt := &models.Attempt{
			ID:        uuid.New().String(),
			QuizID:    st.QuizID,
			Score:     st.Score,
			Total:     len(st.Questions),
			CreatedAt: time.Now(),
		}
		if err := h.db.Create(attempt).Error; err != nil {
			log.Warn().Err(err).Msg("Failed to save attempt")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"quiz_id": st.QuizID,
		"score":   st.Score,
		"total":   len(st.Questions),
		"phase":   st.Phase,
	})
}

// Restart resets the session back to NoDocument.
func (h *Handler) Restart(c *gin.Context) {
	sid, _ := h.session(c)

	h.store.Drop(sid)
	st := h.sessions.Reset(sid)

	c.JSON(http.StatusOK, gin.H{"phase": st.Phase})
}

func (h *Handler) ListQuizzes(c *gin.Context) {
	var quizzes []models.Quiz
	if err := h.db.Order("created_at DESC").Find(&quizzes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve quizzes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"quizzes": quizzes})
}

func (h *Handler) GetQuiz(c *gin.Context) {
	quizID := c.Param("quizId")

	var quiz models.Quiz
	if err := h.db.Where("id = ?", quizID).First(&quiz).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quiz not found"})
		return
	}

	var records []models.QuizQuestionRecord
	if err := h.db.Where("quiz_id = ?", quizID).Order("position ASC").Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve questions"})
		return
	}

	questions := make([]models.QuizQuestion, 0, len(records))
	for _, rec := range records {
		var choices []string
		json.Unmarshal([]byte(rec.Choices), &choices)
		questions = append(questions, models.QuizQuestion{
			Topic:       quiz.Topic,
			Prompt:      rec.Prompt,
			Choices:     choices,
			AnswerIndex: rec.AnswerIndex,
			Explanation: rec.Explanation,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"quiz":      quiz,
		"questions": questions,
	})
}

// persistQuiz stores a generated quiz for history. Persistence failures are
// logged, not surfaced; the in-memory quiz still runs.
func (h *Handler) persistQuiz(topic, pdfName string, questions []models.QuizQuestion) string {
	quizID := uuid.New().String()
	quiz := &models.Quiz{
		ID:           quizID,
		Topic:        topic,
		PDFName:      pdfName,
		NumQuestions: len(questions),
		CreatedAt:    time.Now(),
	}
	if err := h.db.Create(quiz).Error; err != nil {
		log.Warn().Err(err).Msg("Failed to save quiz")
		return ""
	}

	for i, q := range questions {
		choicesJSON, _ := json.Marshal(q.Choices)
		record := &models.QuizQuestionRecord{
			ID:          uuid.New().String(),
			QuizID:      quizID,
			Position:    i,
			Prompt:      q.Prompt,
			Choices:     string(choicesJSON),
			AnswerIndex: q.AnswerIndex,
			Explanation: q.Explanation,
			CreatedAt:   time.Now(),
		}
		if err := h.db.Create(record).Error; err != nil {
			log.Warn().Err(err).Int("position", i).Msg("Failed to save question")
		}
	}

	return quizID
}

// respondError maps pipeline errors to HTTP statuses. The session keeps the
// last stable phase; callers never mutate state before all stages succeed.
func (h *Handler) respondError(c *gin.Context, err error) {
	log.Error().Err(err).Msg("Request failed")
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidParameters),
		errors.Is(err, models.ErrInvalidDocument):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrEmbeddingQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrEmptyIndex):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrEmbeddingServiceUnavailable),
		errors.Is(err, models.ErrGenerationServiceUnavailable),
		errors.Is(err, models.ErrMalformedGenerationResponse),
		errors.Is(err, models.ErrIncompleteGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
