package services

import (
	"strings"

	"github.com/pesatrack/backend/internal/models"
)

// Categorizer assigns categories by keyword. Categories are tried in list order and the
// first one with a keyword present in the hint wins; "Other" catches everything else.
type Categorizer struct {
	categories []models.Category
	keywords   [][]string
	fallbackID string
}

// NewCategorizer fails with a ConfigurationError when the list is empty or has no "Other"
func NewCategorizer(categories []models.Category) (*Categorizer, error) {
	fallbackID, err := ValidateCategories(categories)
	if err != nil {
		return nil, err
	}

	c := &Categorizer{
		categories: categories,
		keywords:   make([][]string, len(categories)),
		fallbackID: fallbackID,
	}
	for i, cat := range categories {
		for _, kw := range cat.Keywords {
			if norm := normalizeKeywordText(kw); norm != "" {
				c.keywords[i] = append(c.keywords[i], norm)
			}
		}
	}
	return c, nil
}

// ValidateCategories returns the id of the fallback category
func ValidateCategories(categories []models.Category) (string, error) {
	if len(categories) == 0 {
		return "", &ConfigurationError{Err: ErrNoCategories}
	}
	for _, cat := range categories {
		if strings.EqualFold(cat.Name, models.FallbackCategoryName) {
			return cat.ID, nil
		}
	}
	return "", &ConfigurationError{Err: ErrNoFallbackCategory}
}

// Categorize is a case-insensitive substring match of each keyword against the hint
func (c *Categorizer) Categorize(hint string) string {
	text := normalizeKeywordText(hint)
	if text == "" {
		return c.fallbackID
	}
	for i, cat := range c.categories {
		for _, kw := range c.keywords[i] {
			if strings.Contains(text, kw) {
				return cat.ID
			}
		}
	}
	return c.fallbackID
}

// Categorize is a one-shot helper for callers that do not reuse a Categorizer
func Categorize(hint string, categories []models.Category) (string, error) {
	c, err := NewCategorizer(categories)
	if err != nil {
		return "", err
	}
	return c.Categorize(hint), nil
}

// normalizeKeywordText lowercases s and collapses runs of whitespace
func normalizeKeywordText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
