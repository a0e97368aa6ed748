package config

import (
	_ "embed"
	"fmt"

	"github.com/pesatrack/backend/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed default_categories.yaml
var defaultCategoriesYAML []byte

type categoryFile struct {
	Categories []models.Category `yaml:"categories"`
}

// LoadDefaultCategories returns the built-in category set in seed order
func LoadDefaultCategories() ([]models.Category, error) {
	return parseCategories(defaultCategoriesYAML)
}

func parseCategories(data []byte) ([]models.Category, error) {
	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode default categories: %w", err)
	}
	for i := range f.Categories {
		f.Categories[i].IsDefault = true
		if f.Categories[i].Keywords == nil {
			f.Categories[i].Keywords = models.StringList{}
		}
	}
	return f.Categories, nil
}
