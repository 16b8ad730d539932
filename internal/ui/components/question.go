package components

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/examgen/internal/examgen"
	"github.com/abhisek/examgen/internal/ui/theme"
)

// QuestionCard renders one generated question.
type QuestionCard struct {
	Question examgen.Question
	Number   int
	Total    int

	// ShowAnswer highlights the correct option and prints the explanation.
	ShowAnswer bool
	Width      int
}

// View renders the card.
func (c QuestionCard) View() string {
	var b strings.Builder

	header := theme.Title.Render(fmt.Sprintf("Pregunta %d/%d", c.Number, c.Total))
	b.WriteString(header + "  " + SourceBadge(c.Question.Source) + "\n\n")
	b.WriteString(theme.Body.Bold(true).Render(c.Question.Stem) + "\n\n")

	correct := c.Question.CorrectAnswer.Index()
	for i, opt := range c.Question.Options {
		if c.ShowAnswer && i == correct {
			b.WriteString(theme.Correct.Render("✓ "+opt) + "\n")
			continue
		}
		b.WriteString(theme.Option.Render("  "+opt) + "\n")
	}

	if c.ShowAnswer && c.Question.Explanation != "" {
		b.WriteString("\n" + theme.Hint.Render(c.Question.Explanation))
	}

	style := theme.Card
	if c.Width > 0 {
		style = style.Width(c.Width)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

// SourceBadge labels where a question came from.
func SourceBadge(s examgen.Source) string {
	var style lipgloss.Style
	switch s {
	case examgen.SourceLLM:
		style = theme.BadgeLLM
	case examgen.SourceBank:
		style = theme.BadgeBank
	default:
		style = theme.BadgeTemplate
	}
	return style.Render("[" + string(s) + "]")
}
