package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a category string is outside the closed set.
var ErrUnknownCategory = errors.New("unknown category")

// Category is the three-way productive/neutral/distraction partition.
type Category string

const (
	CategoryProductive  Category = "productive"
	CategoryNeutral     Category = "neutral"
	CategoryDistraction Category = "distraction"
)

// Categories lists every valid category in a stable order.
func Categories() []Category {
	return []Category{CategoryProductive, CategoryNeutral, CategoryDistraction}
}

// ParseCategory normalizes s and rejects anything outside the closed set.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CategoryProductive, CategoryNeutral, CategoryDistraction:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Subcategory is the finer content label, orthogonal to Category.
type Subcategory string

const (
	SubcategorySocial        Subcategory = "social"
	SubcategoryEntertainment Subcategory = "entertainment"
	SubcategoryShopping      Subcategory = "shopping"
	SubcategoryNews          Subcategory = "news"
	SubcategoryGaming        Subcategory = "gaming"
	SubcategoryDevelopment   Subcategory = "development"
	SubcategoryLearning      Subcategory = "learning"
	SubcategoryProductivity  Subcategory = "productivity"
	SubcategoryWork          Subcategory = "work"
	SubcategoryGeneral       Subcategory = "general"
)

// NormalizeSubcategory lowercases and trims s. Subcategories are free-form
// labels, so unknown values are kept; an empty label becomes "general".
func NormalizeSubcategory(s string) Subcategory {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SubcategoryGeneral
	}
	return Subcategory(s)
}

// Classification is the result of classifying a URL.
type Classification struct {
	Category    Category    `json:"category"`
	Subcategory Subcategory `json:"subcategory"`
}
