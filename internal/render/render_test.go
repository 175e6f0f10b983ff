package render

import (
	"strings"
	"testing"
	"time"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

func ptr[T any](v T) *T { return &v }

func TestScore(t *testing.T) {
	tests := []struct {
		score *float64
		want  string
	}{
		{nil, "(not ranked)"},
		{ptr(0.0), "(0%)"},
		{ptr(0.874), "(87%)"},
		{ptr(1.0), "(100%)"},
	}
	for _, tt := range tests {
		if got := Score(tt.score); got != tt.want {
			t.Errorf("Score = %q, want %q", got, tt.want)
		}
	}
}

func TestChatBubble_AssistantListsSources(t *testing.T) {
	msg := models.ChatMessage{
		Role:    models.RoleAssistant,
		Content: "RAG combines retrieval",
		Sources: []models.ChatSource{
			{Title: "RAG paper", Type: models.SourceArxiv, URL: ptr("https://arxiv.org/abs/2005.11401"), RelevanceScore: ptr(0.91)},
			{Title: "cached", Type: models.SourceCache},
		},
	}
	out := ChatBubble(msg)
	for _, want := range []string{"RAG combines retrieval", "참고 자료:", "RAG paper", "arxiv", "(91%)", "(not ranked)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in bubble:\n%s", want, out)
		}
	}
}

func TestChatBubble_UserHasNoSources(t *testing.T) {
	out := ChatBubble(models.ChatMessage{Role: models.RoleUser, Content: "hello"})
	if !strings.Contains(out, "hello") || strings.Contains(out, "참고 자료") {
		t.Errorf("unexpected user bubble:\n%s", out)
	}
}

func TestPost_FallbacksAndRelativeTime(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	out := Post(models.GuruPost{Content: "new model released", PostedAt: now.Add(-3 * time.Hour)}, now)
	for _, want := range []string{"Unknown Guru", "@unknown", "new model released", "3 hours ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in card:\n%s", want, out)
		}
	}
}

func TestMiniFeed(t *testing.T) {
	now := time.Now()
	if MiniFeed(nil, now) != "" {
		t.Error("empty widget must render nothing")
	}
	out := MiniFeed([]models.GuruPost{
		{Guru: &models.Guru{Name: "Andrew Ng"}, Content: "a\nb", PostedAt: now},
		{Guru: &models.Guru{Name: "Jim Fan"}, Content: strings.Repeat("x", 100), PostedAt: now},
	}, now)
	if !strings.Contains(out, "2개 새 포스트") || !strings.Contains(out, "a b") || !strings.Contains(out, "…") {
		t.Errorf("unexpected widget:\n%s", out)
	}
}

func TestConversationStates(t *testing.T) {
	out := Conversation(nil, true, "메시지 전송에 실패했습니다. 다시 시도해주세요.")
	if !strings.Contains(out, "답변 생성 중...") || !strings.Contains(out, "메시지 전송에 실패했습니다") {
		t.Errorf("unexpected conversation:\n%s", out)
	}
}

func TestStats(t *testing.T) {
	if !strings.Contains(Stats(models.ChatStats{DocumentCount: 4}), "4개 문서") {
		t.Error("expected document count")
	}
	if !strings.Contains(Stats(models.ChatStats{}), "문서 준비 중") {
		t.Error("expected preparing hint")
	}
}
