package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"github.com/local/quizforge/api/models"
)

// quizPrompt instructs the completion model to answer with machine-parseable
// quiz JSON. {topic}, {count} and {context} are substituted at call time.
const quizPrompt = `You are a subject matter expert on the topic: {topic}

Using ONLY the provided context, create exactly {count} multiple-choice quiz questions. Follow these requirements exactly:

1. Each question must be answerable from the context below.
2. Each question must have exactly 4 answer choices with exactly one correct answer.
3. All questions must be distinct; never repeat a question.
4. Provide a short explanation of why the correct answer is correct.

Respond with a JSON object of the following structure and nothing else:
{
  "questions": [
    {
      "question": "Question text here?",
      "choices": ["Choice A", "Choice B", "Choice C", "Choice D"],
      "answer_index": 0,
      "explanation": "Why the correct choice is correct."
    }
  ]
}

Context:
{context}
`

// DefaultTopic is used when the user leaves the topic blank.
const DefaultTopic = "General Knowledge"

// QuizGenerator turns a topic, a question count, and retrieved segments into
// a fully validated quiz.
type QuizGenerator interface {
	Generate(ctx context.Context, topic string, count int, segments []models.Segment) ([]models.QuizQuestion, error)
}

// GeminiQuizGenerator implements QuizGenerator on the Gemini API.
type GeminiQuizGenerator struct {
	model        *genai.GenerativeModel
	maxQuestions int
	policy       RetryPolicy
	timeout      time.Duration
}

func NewGeminiQuizGenerator(client *genai.Client, model string, maxQuestions int, timeout time.Duration) *GeminiQuizGenerator {
	gm := client.GenerativeModel(model)
	gm.ResponseMIMEType = "application/json"
	gm.SetTemperature(0.8)
	gm.SetMaxOutputTokens(4096)

	return &GeminiQuizGenerator{
		model:        gm,
		maxQuestions: maxQuestions,
		policy:       DefaultRetryPolicy(isTransient),
		timeout:      timeout,
	}
}

func (g *GeminiQuizGenerator) Generate(ctx context.Context, topic string, count int, segments []models.Segment) ([]models.QuizQuestion, error) {
	if count <= 0 || count > g.maxQuestions {
		return nil, fmt.Errorf("%w: question count must be between 1 and %d, got %d",
			models.ErrInvalidParameters, g.maxQuestions, count)
	}
	if topic == "" {
		topic = DefaultTopic
	}

	prompt := buildQuizPrompt(topic, count, segments)

	var raw string
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return err
		}
		text, err := responseText(resp)
		if err != nil {
			return err
		}
		raw = text
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrGenerationServiceUnavailable, err)
	}

	return parseQuizResponse(raw, topic, count)
}

// buildQuizPrompt fills the prompt template with the topic, the requested
// question count, and the concatenated segment texts.
func buildQuizPrompt(topic string, count int, segments []models.Segment) string {
	contextBuilder := strings.Builder{}
	for _, seg := range segments {
		contextBuilder.WriteString(seg.Text)
		contextBuilder.WriteString("\n\n")
	}

	prompt := quizPrompt
	prompt = strings.ReplaceAll(prompt, "{topic}", topic)
	prompt = strings.ReplaceAll(prompt, "{count}", fmt.Sprintf("%d", count))
	prompt = strings.ReplaceAll(prompt, "{context}", contextBuilder.String())
	return prompt
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no content in response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return sb.String(), nil
}

type quizResponse struct {
	Questions []struct {
		Question    string   `json:"question"`
		Choices     []string `json:"choices"`
		AnswerIndex int      `json:"answer_index"`
		Explanation string   `json:"explanation"`
	} `json:"questions"`
}

// parseQuizResponse strictly parses completion output into quiz questions.
// Anything that does not match the expected structure fails with
// models.ErrMalformedGenerationResponse carrying the raw text; a structurally
// valid response with the wrong number of questions fails with
// models.ErrIncompleteGeneration. A partial quiz is never returned.
func parseQuizResponse(raw, topic string, count int) ([]models.QuizQuestion, error) {
	jsonText := stripCodeFences(raw)

	var parsed quizResponse
	if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", models.ErrMalformedGenerationResponse, err, raw)
	}

	seen := map[string]bool{}
	questions := make([]models.QuizQuestion, 0, len(parsed.Questions))
	for i, q := range parsed.Questions {
		if strings.TrimSpace(q.Question) == "" {
			return nil, fmt.Errorf("%w: question %d has empty text", models.ErrMalformedGenerationResponse, i)
		}
		if len(q.Choices) != 4 {
			return nil, fmt.Errorf("%w: question %d has %d choices, want 4", models.ErrMalformedGenerationResponse, i, len(q.Choices))
		}
		if !choicesUnique(q.Choices) {
			return nil, fmt.Errorf("%w: question %d has duplicate choices", models.ErrMalformedGenerationResponse, i)
		}
		if q.AnswerIndex < 0 || q.AnswerIndex >= len(q.Choices) {
			return nil, fmt.Errorf("%w: question %d answer index %d out of range", models.ErrMalformedGenerationResponse, i, q.AnswerIndex)
		}
		if seen[q.Question] {
			return nil, fmt.Errorf("%w: duplicate question %q", models.ErrMalformedGenerationResponse, q.Question)
		}
		seen[q.Question] = true

		questions = append(questions, models.QuizQuestion{
			Topic:       topic,
			Prompt:      q.Question,
			Choices:     q.Choices,
			AnswerIndex: q.AnswerIndex,
			Explanation: q.Explanation,
		})
	}

	if len(questions) != count {
		return nil, fmt.Errorf("%w: requested %d questions, got %d", models.ErrIncompleteGeneration, count, len(questions))
	}
	return questions, nil
}

// stripCodeFences removes a surrounding markdown code block if the model
// wrapped its JSON in one.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func choicesUnique(choices []string) bool {
	seen := map[string]bool{}
	for _, c := range choices {
		if seen[c] {
			return false
		}
		seen[c] = true
	}
	return true
}
