package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/ai-learning-tracker/tracker/internal/logging"
	"github.com/ai-learning-tracker/tracker/internal/store"
)

const (
	defaultChatModelName = "gemini-1.5-flash-latest"

	chatSystemInstruction = "당신은 AI 분야 전문가입니다. 제공된 컨텍스트를 기반으로 사용자의 질문에 정확하게 답변하세요.\n" +
		"컨텍스트에 관련 정보가 없으면 모른다고 말하세요. 답변은 한국어로 작성하고, " +
		"기술 용어는 영어로 유지하며 가능하면 논문을 언급하세요."

	emptyAnswer = "죄송합니다. 지금은 답변을 생성할 수 없습니다. 다시 시도해주세요."
)

// GeminiAnswerer answers chat queries with a Gemini model.
type GeminiAnswerer struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiAnswerer(ctx context.Context, apiKey string, logger *zap.Logger) (*GeminiAnswerer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiAnswerer{client: client, model: defaultChatModelName, logger: logging.OrNop(logger)}, nil
}

func (a *GeminiAnswerer) Close() {
	if a.client == nil {
		return
	}
	if err := a.client.Close(); err != nil {
		a.logger.Warn("error closing GenAI client", zap.Error(err))
	}
}

// BuildPrompt lays the documents out as numbered context ahead of the question.
func BuildPrompt(query string, docs []store.Document) string {
	var b strings.Builder
	b.WriteString("컨텍스트:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, d.Title, strings.TrimSpace(d.Content))
	}
	fmt.Fprintf(&b, "질문: %s\n\n위 컨텍스트를 바탕으로 질문에 답변해주세요.", query)
	return b.String()
}

func (a *GeminiAnswerer) Answer(ctx context.Context, query string, docs []store.Document) (string, error) {
	model := a.client.GenerativeModel(a.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(chatSystemInstruction)},
	}
	temp := float32(0.7)
	maxTokens := int32(1024)
	model.GenerationConfig = genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temp,
	}

	resp, err := model.GenerateContent(ctx, genai.Text(BuildPrompt(query, docs)))
	if err != nil {
		return "", fmt.Errorf("gemini GenerateContent failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		a.logger.Warn("gemini response had no candidates")
		return emptyAnswer, nil
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		} else {
			a.logger.Debug("skipping non-text gemini part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	if text.Len() == 0 {
		return emptyAnswer, nil
	}
	return text.String(), nil
}
