package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive advising session",
	Long: `Chat runs a read-answer loop on the terminal. The conversation shares
one session, so follow-up questions see earlier turns. Type "exit" or
"quit" (or press Ctrl-D) to leave.

Examples:
  advisor chat
  advisor chat --user alice --session fall-planning`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&showTrace, "trace", false, "print the execution path and reasoning steps")
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := buildApp(cmd.Context(), userID)
	if err != nil {
		return err
	}
	defer app.close()

	sid := sessionID
	if sid == "" {
		sid = uuid.New().String()
	}

	fmt.Printf("Course advisor ready (session %s). Type 'exit' to leave.\n\n", sid)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		outcome := app.orch.Run(cmd.Context(), query, sid, userID)
		fmt.Print("advisor> ")
		printOutcome(outcome)
		fmt.Println()
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Println("Goodbye!")
	return nil
}
