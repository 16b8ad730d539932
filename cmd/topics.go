package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/examgen/internal/examgen"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics available in the static question bank",
	RunE: func(cmd *cobra.Command, args []string) error {
		bank, err := examgen.LoadEmbeddedBank()
		if err != nil {
			return err
		}

		fmt.Printf("%-28s  %-9s  %s\n", "Key", "Questions", "Name")
		fmt.Println(strings.Repeat("─", 80))
		for _, t := range bank.Topics() {
			fmt.Printf("%-28s  %-9d  %s\n", t.Key, t.Count, t.Name)
		}
		return nil
	},
}
