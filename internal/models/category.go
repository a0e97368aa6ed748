package models

import "time"

// FallbackCategoryName is the category every user is guaranteed to have
const FallbackCategoryName = "Other"

// Category is a spending category with the keywords used for auto-categorization
type Category struct {
	ID        string     `json:"id" db:"id" yaml:"id"`
	UserID    *string    `json:"user_id,omitempty" db:"user_id" yaml:"-"`
	Name      string     `json:"name" db:"name" yaml:"name"`
	Icon      string     `json:"icon" db:"icon" yaml:"icon"`
	Color     string     `json:"color" db:"color" yaml:"color"`
	Keywords  StringList `json:"keywords" db:"keywords" yaml:"keywords"`
	IsDefault bool       `json:"is_default" db:"is_default" yaml:"-"`
	CreatedAt time.Time  `json:"created_at" db:"created_at" yaml:"-"`
}

// CategoryCreateRequest represents a custom category submitted by a user
type CategoryCreateRequest struct {
	Name     string   `json:"name" validate:"required,max=64"`
	Icon     string   `json:"icon" validate:"max=16"`
	Color    string   `json:"color" validate:"omitempty,hexcolor"`
	Keywords []string `json:"keywords" validate:"max=50,dive,required,max=64"`
}
