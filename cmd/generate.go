package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/examgen/internal/examgen"
	"github.com/abhisek/examgen/internal/ui/components"
	"github.com/abhisek/examgen/internal/ui/theme"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate exam questions for a topic",
	Long: `Generate a batch of multiple-choice questions for one topic.

Every requested question is produced: items the model cannot deliver come from
the static question bank or a template, and are marked as such.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("topic-id", "", "Topic key, used for bank lookup (required)")
	generateCmd.Flags().String("topic", "", "Human-readable topic name (defaults to --topic-id)")
	generateCmd.Flags().IntP("count", "n", 5, "Number of questions to generate")
	generateCmd.Flags().String("provider", "", "LLM provider override (openai, anthropic, gemini, openrouter, ollama, mock)")
	generateCmd.Flags().Bool("answers", false, "Show correct answers and explanations")
	generateCmd.Flags().Bool("json", false, "Print questions as JSON")
	_ = generateCmd.MarkFlagRequired("topic-id")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	topicID, _ := cmd.Flags().GetString("topic-id")
	topicName, _ := cmd.Flags().GetString("topic")
	count, _ := cmd.Flags().GetInt("count")
	showAnswers, _ := cmd.Flags().GetBool("answers")
	asJSON, _ := cmd.Flags().GetBool("json")

	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	if topicName == "" {
		topicName = topicID
	}

	ctx := cmd.Context()
	rt, err := openRuntime(ctx, cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	var onProgress examgen.ProgressFunc
	if !asJSON {
		fmt.Fprintln(os.Stderr, theme.Title.Render(fmt.Sprintf("%s · %d preguntas · %s", topicName, count, rt.provider)))
		onProgress = func(current, total int) {
			fmt.Fprint(os.Stderr, "\r"+components.NewProgressBar("Generando", current, total, 50).View())
			if current == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	qs, err := rt.generator.GenerateQuestions(ctx, topicID, topicName, count, onProgress)
	var cerr *examgen.ConfigError
	if err != nil && !errors.As(err, &cerr) {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(qs)
	}

	if cerr != nil {
		fmt.Fprintln(os.Stderr, theme.Warning.Render("LLM no configurado: ")+cerr.Err.Error())
	}
	fmt.Println()
	for i, q := range qs {
		card := components.QuestionCard{Question: q, Number: i + 1, Total: len(qs), ShowAnswer: showAnswers, Width: 80}
		fmt.Println(card.View())
	}
	fmt.Println(summary(qs))
	return nil
}

func summary(qs []examgen.Question) string {
	counts := map[examgen.Source]int{}
	for _, q := range qs {
		counts[q.Source]++
	}
	return theme.Hint.Render(fmt.Sprintf("%d del modelo · %d del banco · %d de plantilla",
		counts[examgen.SourceLLM], counts[examgen.SourceBank], counts[examgen.SourceTemplate]))
}
