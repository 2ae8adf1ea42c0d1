package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type Config struct {
	APIKey         string
	ChatModel      string
	EmbeddingModel string
}

// Service wraps the Gemini client behind two calls: single-prompt text
// completion and text embedding. Responses are normalized to plain text
// here, once, so callers never see the candidate/part structure.
type Service struct {
	client *genai.Client
	config Config
	logger *zap.Logger
}

func New(ctx context.Context, config Config, logger *zap.Logger) (*Service, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Service{client: client, config: config, logger: logger}, nil
}

func (s *Service) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("Error closing GenAI client", zap.Error(err))
		}
	}
}

// Complete sends a single assembled prompt and returns the reply as plain
// text.
func (s *Service) Complete(ctx context.Context, prompt string) (string, error) {
	model := s.client.GenerativeModel(s.config.ChatModel)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion request failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.logger.Warn("Gemini response was empty or had no valid candidates")
		return "I'm sorry, I couldn't generate a response at this time. Please try again.", nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			s.logger.Warn("Gemini response part was not text", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}

	if text.Len() == 0 {
		return "I received an empty or non-text response, please try rephrasing your question.", nil
	}
	return text.String(), nil
}

// Embed returns the embedding vector for a piece of text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(s.config.EmbeddingModel)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return res.Embedding.Values, nil
}
