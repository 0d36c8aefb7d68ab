package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanmaster/vanmaster/internal/chat"
	"github.com/vanmaster/vanmaster/internal/config"
	"github.com/vanmaster/vanmaster/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg := config.Load()
		dbPath, err := resolveDBPath(cmd)
		if err != nil {
			return fmt.Errorf("resolve DB path: %w", err)
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		p, err := st.GetProfile(ctx, appCfg.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fmt.Println("No profile yet. Run `vanmaster` to start learning.")
				return nil
			}
			return fmt.Errorf("load profile: %w", err)
		}

		fmt.Printf("Student:       %s\n", p.Name)
		if p.TargetScore != nil {
			fmt.Printf("Target score:  %.4g/10\n", *p.TargetScore)
		}
		if p.DiagnosticScore != nil {
			fmt.Printf("Diagnostic:    %.4g\n", *p.DiagnosticScore)
		}
		if p.AvgScore != nil {
			fmt.Printf("Average score: %.4g/10 over %d exams\n", *p.AvgScore, p.SubmissionCount)
		}
		fmt.Printf("XP:            %d (level %s, streak %d)\n", p.XP, p.Level, p.Streak)
		if len(p.Weaknesses) > 0 {
			fmt.Printf("Weaknesses:    %s\n", strings.Join(p.Weaknesses, ", "))
		}
		if len(p.Strengths) > 0 {
			fmt.Printf("Strengths:     %s\n", strings.Join(p.Strengths, ", "))
		}
		fmt.Printf("Exam in:       %d days\n", chat.DaysUntilExam(time.Now()))

		usage, err := st.LLMUsageByPurpose(ctx)
		if err != nil {
			return fmt.Errorf("load llm usage: %w", err)
		}
		if len(usage) > 0 {
			fmt.Println("\nAI usage:")
			for _, u := range usage {
				fmt.Printf("  %-10s %5d calls  %3d failed  %8d in / %8d out tokens\n",
					u.Purpose, u.Calls, u.Failures, u.InputTokens, u.OutputTokens)
			}
		}
		return nil
	},
}
