// Package render draws posts, chat bubbles and the mini feed for the terminal.
package render

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/ai-learning-tracker/tracker/internal/models"
)

var (
	PrimaryColor = lipgloss.Color("#A78BFA")
	MutedColor   = lipgloss.Color("#9CA3AF")
	ErrorColor   = lipgloss.Color("#F87171")
	SuccessColor = lipgloss.Color("#10B981")
	BorderColor  = lipgloss.Color("#6B7280")

	ArxivColor       = lipgloss.Color("#F87171")
	HuggingFaceColor = lipgloss.Color("#FBBF24")

	Title = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
	Muted = lipgloss.NewStyle().Foreground(MutedColor)

	ErrorBox = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor).
			Padding(0, 1)

	Banner = lipgloss.NewStyle().Foreground(SuccessColor).Bold(true)

	card = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(BorderColor).
		Padding(0, 1)

	userBubble = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F9FAFB")).
			Background(PrimaryColor).
			Padding(0, 1)

	assistantBubble = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	badge = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

// Width is the column budget used for cards and bubbles.
var Width = 80

// Post renders one feed card. now is used for the relative timestamp.
func Post(p models.GuruPost, now time.Time) string {
	name, handle := "Unknown Guru", "unknown"
	if p.Guru != nil {
		name, handle = p.Guru.Name, p.Guru.ThreadsHandle
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n",
		Title.Render(name),
		Muted.Render("@"+handle),
		Muted.Render("· "+humanize.RelTime(p.PostedAt, now, "ago", "from now")))
	b.WriteString(p.Content)
	if p.ThreadsURL != nil && *p.ThreadsURL != "" {
		b.WriteString("\n" + Muted.Render("Threads: "+*p.ThreadsURL))
	}
	return card.Width(Width).Render(b.String())
}

// MiniFeed is the compact widget: a header and one line per post.
func MiniFeed(posts []models.GuruPost, now time.Time) string {
	if len(posts) == 0 {
		return ""
	}
	lines := []string{Title.Render(fmt.Sprintf("%d개 새 포스트", len(posts)))}
	for _, p := range posts {
		name := "Unknown Guru"
		if p.Guru != nil {
			name = p.Guru.Name
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			lipgloss.NewStyle().Bold(true).Render(name),
			truncate(oneLine(p.Content), 60),
			Muted.Render(humanize.RelTime(p.PostedAt, now, "ago", "from now"))))
	}
	return card.Render(strings.Join(lines, "\n"))
}

// ChatBubble renders a message. User messages are right-aligned; assistant
// messages list their sources underneath.
func ChatBubble(m models.ChatMessage) string {
	if m.Role == models.RoleUser {
		bubble := userBubble.MaxWidth(Width * 85 / 100).Render(m.Content)
		return lipgloss.PlaceHorizontal(Width, lipgloss.Right, bubble)
	}

	body := m.Content
	if len(m.Sources) > 0 {
		lines := []string{Muted.Render("참고 자료:")}
		for _, s := range m.Sources {
			lines = append(lines, Source(s))
		}
		body += "\n\n" + strings.Join(lines, "\n")
	}
	return assistantBubble.Width(Width * 85 / 100).Render(body)
}

// Source renders one citation line: type badge, title, link and score.
func Source(s models.ChatSource) string {
	line := SourceBadge(s.Type) + " " + s.Title
	if s.URL != nil && *s.URL != "" {
		line += " " + Muted.Render("<"+*s.URL+">")
	}
	return line + " " + Muted.Render(Score(s.RelevanceScore))
}

func SourceBadge(t models.SourceType) string {
	style := badge.Foreground(MutedColor)
	switch t {
	case models.SourceArxiv:
		style = badge.Foreground(ArxivColor)
	case models.SourceHuggingFace:
		style = badge.Foreground(HuggingFaceColor)
	}
	return style.Render(string(t))
}

// Score formats a relevance score as a percentage. A missing score is shown
// as unranked rather than 0%.
func Score(score *float64) string {
	if score == nil {
		return "(not ranked)"
	}
	return fmt.Sprintf("(%d%%)", int(math.Round(*score*100)))
}

// Conversation renders every message, followed by the loading indicator or
// the error line when present.
func Conversation(msgs []models.ChatMessage, loading bool, errMsg string) string {
	parts := make([]string, 0, len(msgs)+2)
	for _, m := range msgs {
		parts = append(parts, ChatBubble(m))
	}
	if loading {
		parts = append(parts, Muted.Render("답변 생성 중..."))
	}
	if errMsg != "" {
		parts = append(parts, ErrorBox.Render(errMsg))
	}
	return strings.Join(parts, "\n")
}

// Stats is the indexed-document hint shown in the chat header.
func Stats(s models.ChatStats) string {
	if s.DocumentCount > 0 {
		return Muted.Render(fmt.Sprintf("%d개 문서 인덱싱됨", s.DocumentCount))
	}
	return Muted.Render("문서 준비 중...")
}

// Guru renders a settings row with a follow checkbox.
func Guru(g models.Guru, followed bool) string {
	box := "[ ]"
	if followed {
		box = lipgloss.NewStyle().Foreground(PrimaryColor).Render("[x]")
	}
	line := fmt.Sprintf("%s %s %s", box, Title.Render(g.Name), Muted.Render("@"+g.ThreadsHandle))
	if g.Bio != nil && *g.Bio != "" {
		line += "\n    " + Muted.Render(*g.Bio)
	}
	return line
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
