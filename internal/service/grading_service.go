package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"examgrader/config"
	"examgrader/internal/apperr"
	"examgrader/internal/model"
	"examgrader/internal/paper"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// GradingService turns a (paperId, answerText, timeSpent) triple into a
// structurally-validated grading result, or fails explicitly. No partial
// results are ever returned.
type GradingService interface {
	Ready() bool
	GradeAnswer(ctx context.Context, paperID, answerText string, timeSpent int) (*model.GradingResult, error)
}

// completionAPI is the slice of the OpenAI client the grader uses; it lets
// tests substitute a scripted backend.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type gradingService struct {
	client completionAPI
	model  string

	// Transient transport errors are retried a bounded number of times.
	// Malformed or schema-invalid responses are never retried.
	maxRetries   int
	retryBackoff time.Duration
}

func NewGradingService(cfg *config.Config) GradingService {
	s := &gradingService{
		model:        cfg.OpenAIModel,
		maxRetries:   2,
		retryBackoff: 500 * time.Millisecond,
	}
	if cfg.OpenAIApiKey == "" {
		// Leave the client nil; Ready() reports unavailable and the
		// dispatcher answers 503 instead of crashing.
		return s
	}
	s.client = openai.NewClient(cfg.OpenAIApiKey)
	return s
}

func (s *gradingService) Ready() bool {
	return s.client != nil
}

const noAnswerFeedback = "No answer was provided for grading."
const noAnswerOutline = "No answer submitted. A specific outline cannot be generated for this attempt."

// floorResult is the fixed zero-cost result for an empty submission. Section
// scores follow the paper's layout: zeroed for sectioned papers, N/A for
// single-essay papers.
func floorResult(paperID string) *model.GradingResult {
	sections := model.SectionScores{SectionA: "N/A", SectionB: "N/A", SectionC: "N/A"}
	if paper.LayoutFor(paperID) == paper.MultiSection {
		sections = model.SectionScores{SectionA: "0/20", SectionB: "0/20", SectionC: "0/20"}
	}
	return &model.GradingResult{
		Score:         0,
		Grade:         "U",
		Feedback:      noAnswerFeedback,
		SectionScores: sections,
		Outline:       noAnswerOutline,
	}
}

func (s *gradingService) GradeAnswer(ctx context.Context, paperID, answerText string, timeSpent int) (*model.GradingResult, error) {
	if strings.TrimSpace(answerText) == "" {
		log.Info().Str("paperId", paperID).Msg("Empty answer submitted, returning floor result without calling the grading backend")
		return floorResult(paperID), nil
	}
	if s.client == nil {
		return nil, apperr.NewGrading(apperr.GradingTransport, fmt.Errorf("grading client not initialized"))
	}

	layout := paper.LayoutFor(paperID)
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildGradingSystemPrompt(layout)},
			{Role: openai.ChatMessageRoleUser, Content: buildGradingUserPrompt(paperID, answerText, timeSpent)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	}

	raw, err := s.complete(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("paperId", paperID).Msg("Grading backend call failed")
		return nil, apperr.NewGrading(apperr.GradingTransport, err)
	}

	result, err := decodeGradingResult(raw)
	if err != nil {
		var gerr *apperr.GradingError
		if errors.As(err, &gerr) {
			log.Warn().Str("paperId", paperID).Str("kind", string(gerr.Kind)).Err(err).Msg("Grading backend returned an unusable response")
		}
		return nil, err
	}
	return result, nil
}

// complete performs the chat completion with bounded retry on transport
// failures only.
func (s *gradingService) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(s.retryBackoff * time.Duration(attempt)):
			}
			log.Warn().Int("attempt", attempt).Err(lastErr).Msg("Retrying grading backend call")
		}
		resp, err := s.client.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			lastErr = fmt.Errorf("grading backend returned no content")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}
	return "", lastErr
}

// decodeGradingResult parses and validates the model's JSON output. Invalid
// JSON and a structurally-invalid object are distinct failure kinds; neither
// is ever accepted partially.
func decodeGradingResult(raw string) (*model.GradingResult, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, apperr.NewGrading(apperr.GradingBadJSON,
			fmt.Errorf("invalid JSON from grading backend: %v (raw: %s)", err, truncate(raw, 200)))
	}

	var (
		score    float64
		grade    string
		feedback string
		sections model.SectionScores
		outline  string
	)
	if err := requireField(fields, "score", &score); err != nil {
		return nil, err
	}
	if err := requireField(fields, "grade", &grade); err != nil {
		return nil, err
	}
	if err := requireField(fields, "feedback", &feedback); err != nil {
		return nil, err
	}
	if err := requireObjectField(fields, "sectionScores", &sections); err != nil {
		return nil, err
	}
	if err := requireField(fields, "outline", &outline); err != nil {
		return nil, err
	}

	return &model.GradingResult{
		Score:         int(math.Round(score)),
		Grade:         grade,
		Feedback:      feedback,
		SectionScores: sections,
		Outline:       outline,
	}, nil
}

func requireField(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return apperr.NewGrading(apperr.GradingBadSchema, fmt.Errorf("grading response missing field %q", name))
	}
	// json.Unmarshal treats a literal null as a no-op, which would silently
	// default the field; null is a wrong type here, not an absence.
	if isJSONNull(raw) {
		return apperr.NewGrading(apperr.GradingBadSchema, fmt.Errorf("grading response field %q is null", name))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.NewGrading(apperr.GradingBadSchema, fmt.Errorf("grading response field %q has wrong type: %v", name, err))
	}
	return nil
}

func requireObjectField(fields map[string]json.RawMessage, name string, dst *model.SectionScores) error {
	raw, ok := fields[name]
	if !ok {
		return apperr.NewGrading(apperr.GradingBadSchema, fmt.Errorf("grading response missing field %q", name))
	}
	if isJSONNull(raw) {
		return apperr.NewGrading(apperr.GradingBadSchema, fmt.Errorf("grading response field %q is null", name))
	}
	// Reject non-objects (e.g. a string or array) before filling the struct.
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return apperr.NewGrading(apperr.GradingBadSchema, fmt.Errorf("grading response field %q is not an object: %v", name, err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return apperr.NewGrading(apperr.GradingBadSchema, fmt.Errorf("grading response field %q has wrong shape: %v", name, err))
	}
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func buildGradingSystemPrompt(layout paper.SectionLayout) string {
	var sb strings.Builder
	sb.WriteString("You are an A-Level exam marker.\n")
	sb.WriteString("You will be given the student's answer, the paper ID (e.g. econ-9708-11-mj-25 or biz-9609-21-fm-25), and the time they spent.\n")
	sb.WriteString("Provide the following in a VALID JSON object format, with all fields populated:\n")
	sb.WriteString("1. \"score\": An integer score out of 60.\n")
	sb.WriteString("2. \"grade\": A single uppercase letter grade (A, B, C, D, E, or U).\n")
	sb.WriteString("3. \"feedback\": Constructive, detailed feedback on the student's answer, referencing specific parts of their text. Minimum 100 words.\n")

	switch layout {
	case paper.SingleEssay:
		sb.WriteString("4. \"sectionScores\": This is a single-essay paper. Set \"sectionA\": \"N/A\", \"sectionB\": \"N/A\", \"sectionC\": \"N/A\".\n")
	default:
		sb.WriteString("4. \"sectionScores\": This paper is marked in sections. Provide scores for \"sectionA\", \"sectionB\", and \"sectionC\" as strings like \"15/20\". If a section is not part of this paper, use \"N/A\".\n")
	}

	sb.WriteString("5. \"outline\": A model essay outline relevant to the paper and the student's answer, suggesting improvements or a better structure. Minimum 70 words. Structure it with markdown for readability.\n\n")
	sb.WriteString("Base your grading on typical A-Level standards.\n")
	sb.WriteString("- Economics papers are 'econ-9708-XX-XX-XX'.\n")
	sb.WriteString("- Business papers are 'biz-9609-XX-XX-XX'.\n")
	sb.WriteString("Tailor feedback and the outline accordingly.\n")
	sb.WriteString("Be critical but fair. If the answer is very poor, reflect that in the score and grade.\n")
	sb.WriteString("Ensure the output is ONLY the JSON object.")
	return sb.String()
}

func buildGradingUserPrompt(paperID, answerText string, timeSpent int) string {
	spent := "Not specified"
	if timeSpent > 0 {
		spent = fmt.Sprintf("%d", timeSpent)
	}
	return fmt.Sprintf("Paper ID: %s\nTime Spent: %s seconds\nStudent's Answer:\n---\n%s\n---", paperID, spent, answerText)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
