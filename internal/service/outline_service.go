package service

import (
	"context"
	"fmt"
	"strings"

	"examgrader/config"
	"examgrader/internal/apperr"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

// OutlineService produces a freeform study outline for a paper, optionally
// conditioned on a specific question. Stateless; nothing is persisted.
type OutlineService interface {
	Ready() bool
	GenerateOutline(ctx context.Context, paperID, questionText string) (string, error)
}

type outlineService struct {
	client completionAPI
	model  string
}

func NewOutlineService(cfg *config.Config) OutlineService {
	s := &outlineService{model: cfg.OpenAIModel}
	if cfg.OpenAIApiKey == "" {
		return s
	}
	s.client = openai.NewClient(cfg.OpenAIApiKey)
	return s
}

func (s *outlineService) Ready() bool {
	return s.client != nil
}

func (s *outlineService) GenerateOutline(ctx context.Context, paperID, questionText string) (string, error) {
	if s.client == nil {
		return "", &apperr.OutlineError{Err: fmt.Errorf("outline client not initialized")}
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are an expert A-Level tutor specializing in essay planning and structure."},
			{Role: openai.ChatMessageRoleUser, Content: buildOutlinePrompt(paperID, questionText)},
		},
		Temperature: 0.5,
	})
	if err != nil {
		log.Error().Err(err).Str("paperId", paperID).Msg("Outline generation call failed")
		return "", &apperr.OutlineError{Err: err}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &apperr.OutlineError{Err: fmt.Errorf("outline backend returned no content")}
	}
	return resp.Choices[0].Message.Content, nil
}

func buildOutlinePrompt(paperID, questionText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate a detailed essay outline for an A-Level paper with ID %s.\n", paperID)
	if questionText != "" {
		fmt.Fprintf(&sb, "The specific question or context is: %q\n", questionText)
	} else {
		sb.WriteString("Focus on common themes and structure for this paper type.\n")
	}
	sb.WriteString("The outline should be structured clearly with main sections (e.g. Introduction, Section A, Section B, Conclusion), sub-points using bullet points or numbered lists, and suggestions for examples, evidence, or key concepts to include where applicable.\n")
	sb.WriteString("The tone should be academic and helpful for a student preparing for an exam.\n")
	sb.WriteString("Return the outline as a plain text string, formatted with markdown for readability (e.g. using # for headings, * or - for bullet points). Aim for a comprehensive outline.")
	return sb.String()
}
