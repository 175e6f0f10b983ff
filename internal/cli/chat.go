package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ai-learning-tracker/tracker/internal/chat"
	"github.com/ai-learning-tracker/tracker/internal/render"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [question...]",
		Short: "Ask the research assistant",
		Long: `Ask a question about AI research papers. Without arguments an
interactive session starts; type "exit" or press Ctrl+D to leave.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			conv := chat.New(a.client, a.provider, a.logger)
			defer conv.Close()

			fmt.Fprintln(out, render.Stats(conv.LoadStats(cmd.Context())))

			if len(args) > 0 {
				return ask(cmd, conv, strings.Join(args, " "), out)
			}

			fmt.Fprintln(out, render.Title.Render("AI Research Assistant"))
			for _, s := range chat.Suggestions() {
				fmt.Fprintln(out, render.Muted.Render("  · "+s))
			}
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "exit" || line == "quit" {
					return nil
				}
				if line == "" {
					continue
				}
				// A failed send is shown inline; the session keeps going.
				ask(cmd, conv, line, out)
			}
		},
	}
}

func ask(cmd *cobra.Command, conv *chat.Session, query string, out io.Writer) error {
	fmt.Fprintln(out, render.Muted.Render("답변 생성 중..."))
	if err := conv.Submit(cmd.Context(), query); err != nil {
		fmt.Fprintln(out, render.ErrorBox.Render(conv.Err()))
		return err
	}
	msgs := conv.Messages()
	fmt.Fprintln(out, render.ChatBubble(msgs[len(msgs)-1]))
	if conv.LastCached() {
		fmt.Fprintln(out, render.Muted.Render("(cached)"))
	}
	return nil
}
