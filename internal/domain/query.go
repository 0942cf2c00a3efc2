package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidTimeframe = errors.New("invalid timeframe")
)

// Timeframe bounds how far back articles are accepted.
type Timeframe string

const (
	Timeframe24h Timeframe = "24h"
	Timeframe48h Timeframe = "48h"
	Timeframe72h Timeframe = "72h"
	Timeframe7d  Timeframe = "7d"

	DefaultTimeframe = Timeframe24h
)

// ParseTimeframe accepts "", 24h, 48h, 72h and 7d. Empty maps to the default.
func ParseTimeframe(raw string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(raw))); tf {
	case "":
		return DefaultTimeframe, nil
	case Timeframe24h, Timeframe48h, Timeframe72h, Timeframe7d:
		return tf, nil
	default:
		return "", fmt.Errorf("%w %q (want 24h|48h|72h|7d)", ErrInvalidTimeframe, raw)
	}
}

// Window returns the lookback duration.
func (t Timeframe) Window() time.Duration {
	switch t {
	case Timeframe48h:
		return 48 * time.Hour
	case Timeframe72h:
		return 72 * time.Hour
	case Timeframe7d:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Days is the window rounded up to whole days, as used by date-scoped provider queries.
func (t Timeframe) Days() int {
	return int((t.Window() + 24*time.Hour - 1) / (24 * time.Hour))
}

// Category is a topic slug.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryWorld         Category = "world"
	CategoryBusiness      Category = "business"
	CategoryTechnology    Category = "technology"
	CategoryScience       Category = "science"
	CategoryHealth        Category = "health"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryPolitics      Category = "politics"
)

var categoryLabels = map[Category]string{
	CategoryGeneral:       "top news",
	CategoryWorld:         "world",
	CategoryBusiness:      "business",
	CategoryTechnology:    "technology",
	CategoryScience:       "science",
	CategoryHealth:        "health",
	CategorySports:        "sports",
	CategoryEntertainment: "entertainment",
	CategoryPolitics:      "politics",
}

// ParseCategory normalizes a slug. Empty maps to general; a few aliases are accepted.
func ParseCategory(raw string) (Category, error) {
	slug := strings.ToLower(strings.TrimSpace(raw))
	switch slug {
	case "":
		return CategoryGeneral, nil
	case "sport":
		return CategorySports, nil
	case "tech":
		return CategoryTechnology, nil
	}
	c := Category(slug)
	if _, ok := categoryLabels[c]; !ok {
		return "", fmt.Errorf("%w %q", ErrInvalidCategory, raw)
	}
	return c, nil
}

// Categories lists the known slugs in a fixed order.
func Categories() []Category {
	return []Category{
		CategoryGeneral, CategoryWorld, CategoryBusiness, CategoryTechnology, CategoryScience,
		CategoryHealth, CategorySports, CategoryEntertainment, CategoryPolitics,
	}
}

// Label is the free-text stand-in for the category when no query is given.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// QueryKey identifies one aggregate result in the cache. Day is a UTC calendar
// day, so cached results roll over daily.
type QueryKey struct {
	Category  Category
	Timeframe Timeframe
	Query     string
	Day       string
}

// NewQueryKey builds a key bucketed to the UTC day of now.
func NewQueryKey(c Category, tf Timeframe, query string, now time.Time) QueryKey {
	return QueryKey{
		Category:  c,
		Timeframe: tf,
		Query:     strings.Join(strings.Fields(strings.ToLower(query)), " "),
		Day:       now.UTC().Format("2006-01-02"),
	}
}

func (k QueryKey) String() string {
	return string(k.Category) + "|" + string(k.Timeframe) + "|" + k.Query + "|" + k.Day
}
