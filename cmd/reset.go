package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanmaster/vanmaster/internal/config"
	"github.com/vanmaster/vanmaster/internal/store"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase study data and restart onboarding",
	Long:  "Deletes submissions, chat memory, and assessment results for the configured student. Identity and voice settings are kept.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			fmt.Println("This erases all study progress. Re-run with --yes to confirm.")
			return nil
		}

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

		if err := st.ResetStudyData(cmd.Context(), appCfg.UserID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				fmt.Println("No study data found for user", appCfg.UserID)
				return nil
			}
			return fmt.Errorf("reset study data: %w", err)
		}
		fmt.Println("Study data erased. The next start begins with onboarding.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "Confirm the reset")
}
