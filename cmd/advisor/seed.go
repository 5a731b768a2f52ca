package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/advisord/internal/catalog"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the course catalog into the vector store",
	Long: `Seed embeds and stores the course catalog. Without --file the bundled
catalog is used. Seeding is idempotent: course codes are stable IDs, so
re-seeding overwrites records in place.

Examples:
  advisor seed
  advisor seed --file catalog.yaml`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "catalog YAML file (defaults to the bundled catalog)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	var (
		courses []catalog.Course
		err     error
	)
	if seedFile == "" {
		if courses, err = catalog.SeedCourses(); err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(seedFile)
		if err != nil {
			return fmt.Errorf("reading catalog file: %w", err)
		}
		var doc struct {
			Courses []catalog.Course `yaml:"courses"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing catalog file: %w", err)
		}
		courses = doc.Courses
	}

	app, err := buildApp(cmd.Context(), userID)
	if err != nil {
		return err
	}
	defer app.close()

	if err := app.catalog.Seed(cmd.Context(), courses); err != nil {
		return err
	}

	fmt.Printf("Seeded %d courses.\n", len(courses))
	return nil
}
