package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddressCanonical(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want string
	}{
		{
			name: "simple",
			addr: Address{Street: "Kaiserstraße", HouseNumber: "1"},
			want: "kaiserstraße,1",
		},
		{
			name: "mixed case and padding",
			addr: Address{Street: "  KaiserStraße  ", HouseNumber: " 1A "},
			want: "kaiserstraße,1a",
		},
		{
			name: "inner whitespace collapsed",
			addr: Address{Street: "Am   alten  Bahnhof", HouseNumber: "12 b"},
			want: "am alten bahnhof,12b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.Canonical())
		})
	}
}

func TestEquivalentAddressesShareCanonicalForm(t *testing.T) {
	a := Address{Street: "Kaiserstraße", HouseNumber: "1"}
	b := Address{Street: "kaiserstraße ", HouseNumber: " 1"}
	assert.Equal(t, a.Canonical(), b.Canonical())
}

func TestNotifiedOn(t *testing.T) {
	morning := time.Date(2024, 3, 14, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 14, 20, 0, 0, 0, time.UTC)
	nextDay := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)

	sub := Subscriber{LastNotified: &morning}
	assert.True(t, sub.NotifiedOn(evening), "same calendar day counts regardless of time")
	assert.False(t, sub.NotifiedOn(nextDay))

	never := Subscriber{}
	assert.False(t, never.NotifiedOn(evening))
}

func TestCategoryFromName(t *testing.T) {
	category, ok := CategoryFromName("Bioabfall")
	assert.True(t, ok)
	assert.Equal(t, WasteBio, category)

	category, ok = CategoryFromName("restmüll")
	assert.True(t, ok)
	assert.Equal(t, WasteResidual, category)

	_, ok = CategoryFromName("Sondermüll")
	assert.False(t, ok)
}

func TestSortCategories(t *testing.T) {
	got := SortCategories([]WasteCategory{WasteResidual, WasteBio, WastePaper})
	assert.Equal(t, []WasteCategory{WasteBio, WastePaper, WasteResidual}, got)
}
