package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question",
	Long: `Ask answers one question and exits.

Examples:
  # One-off question
  advisor ask "what are the prerequisites for CS004?"

  # Continue an earlier conversation
  advisor ask --session weds-planning "and what about CS021?"

  # Show the execution trace
  advisor ask --trace "which courses cover machine learning?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&showTrace, "trace", false, "print the execution path and reasoning steps")
}

func runAsk(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("question cannot be empty")
	}

	app, err := buildApp(cmd.Context(), userID)
	if err != nil {
		return err
	}
	defer app.close()

	sid := sessionID
	if sid == "" {
		sid = uuid.New().String()
	}

	outcome := app.orch.Run(cmd.Context(), query, sid, userID)
	printOutcome(outcome)

	if outcome.Failed {
		return fmt.Errorf("the run did not complete cleanly")
	}
	return nil
}
