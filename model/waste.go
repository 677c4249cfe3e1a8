package model

import (
	"strings"

	"golang.org/x/exp/slices"
)

// WasteCategory is one of the waste streams the city collects.
type WasteCategory string

const (
	WasteBio       WasteCategory = "bio"
	WasteRecycling WasteCategory = "recycling"
	WastePaper     WasteCategory = "paper"
	WasteResidual  WasteCategory = "residual"
)

var categoryNames = map[WasteCategory]string{
	WasteBio:       "Bioabfall",
	WasteRecycling: "Wertstoff",
	WastePaper:     "Papier",
	WasteResidual:  "Restmüll",
}

var categoryEmojis = map[WasteCategory]string{
	WasteBio:       "🍂",
	WasteRecycling: "♻️",
	WastePaper:     "📦",
	WasteResidual:  "🗑",
}

// DisplayName returns the German name the city uses on its calendar.
func (c WasteCategory) DisplayName() string {
	return categoryNames[c]
}

func (c WasteCategory) Emoji() string {
	return categoryEmojis[c]
}

// CategoryFromName maps a calendar source name ("Bioabfall" etc.) back to a
// category. The bool is false for names the bot does not know.
func CategoryFromName(name string) (WasteCategory, bool) {
	for category, categoryName := range categoryNames {
		if strings.EqualFold(name, categoryName) {
			return category, true
		}
	}
	return "", false
}

// SortCategories orders categories the way they appear in the printed
// calendar, so messages are stable regardless of map iteration order.
func SortCategories(categories []WasteCategory) []WasteCategory {
	order := []WasteCategory{WasteBio, WasteRecycling, WastePaper, WasteResidual}
	slices.SortFunc(categories, func(a, b WasteCategory) int {
		return slices.Index(order, a) - slices.Index(order, b)
	})
	return categories
}
