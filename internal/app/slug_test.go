package app_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"midtown_book/internal/app"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Sunrise Café":           "sunrise-cafe",
		"Joe's Pizza & Subs":     "joes-pizza-and-subs",
		"  Tech   Repair Plus!! ": "tech-repair-plus",
		"Crème Brûlée Bistro":    "creme-brulee-bistro",
		"!!!":                    "business",
		"24/7 Laundromat":        "24-7-laundromat",
	}
	for in, want := range cases {
		assert.Equal(t, want, app.Slugify(in), in)
	}

	long := app.Slugify(strings.Repeat("word ", 40))
	assert.LessOrEqual(t, len(long), 80)
	assert.False(t, strings.HasSuffix(long, "-"))
}
