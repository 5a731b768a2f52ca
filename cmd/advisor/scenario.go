package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario <file>",
	Short: "Run a scripted conversation from a file",
	Long: `Scenario replays a scripted conversation against one session and
prints each question and answer. The file is either a YAML document
with a "queries" list, or plain text with one question per line
(blank lines and #-comments are skipped).

Examples:
  advisor scenario demo.yaml
  advisor scenario --user alice --trace questions.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runScenario,
}

func init() {
	scenarioCmd.Flags().BoolVar(&showTrace, "trace", false, "print the execution path and reasoning steps")
}

func runScenario(cmd *cobra.Command, args []string) error {
	queries, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return fmt.Errorf("scenario %s contains no queries", args[0])
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

	failures := 0
	for i, query := range queries {
		fmt.Printf("[%d/%d] you> %s\n", i+1, len(queries), query)
		outcome := app.orch.Run(cmd.Context(), query, sid, userID)
		fmt.Print("advisor> ")
		printOutcome(outcome)
		fmt.Println()
		if outcome.Failed {
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d queries did not complete cleanly", failures, len(queries))
	}
	return nil
}

// loadScenario parses a scenario file: YAML with a queries list, or
// line-oriented plain text.
func loadScenario(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var doc struct {
		Queries []string `yaml:"queries"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Queries) > 0 {
		return doc.Queries, nil
	}

	var queries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	return queries, nil
}
