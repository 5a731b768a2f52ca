package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedData []byte

// SeedCourses returns the bundled course catalog.
func SeedCourses() ([]Course, error) {
	var file struct {
		Courses []Course `yaml:"courses"`
	}
	if err := yaml.Unmarshal(seedData, &file); err != nil {
		return nil, fmt.Errorf("parsing bundled catalog: %w", err)
	}
	return file.Courses, nil
}
