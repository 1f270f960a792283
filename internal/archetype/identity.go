// Package archetype names commander color identities.
package archetype

import "strings"

// colorOrder is the canonical WUBRG ordering.
const colorOrder = "WUBRG"

// Identity is a normalized color identity and its common name.
type Identity struct {
	Colors string `json:"colors"` // e.g., "WU", "BRG", "C" for colorless
	Name   string `json:"name"`   // e.g., "Azorius", "Jund"
}

var identityNames = map[string]string{
	"C": "Colorless",

	"W": "Mono-White",
	"U": "Mono-Blue",
	"B": "Mono-Black",
	"R": "Mono-Red",
	"G": "Mono-Green",

	"WU": "Azorius",
	"UB": "Dimir",
	"BR": "Rakdos",
	"RG": "Gruul",
	"WG": "Selesnya",
	"WB": "Orzhov",
	"UR": "Izzet",
	"BG": "Golgari",
	"WR": "Boros",
	"UG": "Simic",

	"WUG": "Bant",
	"WUB": "Esper",
	"UBR": "Grixis",
	"BRG": "Jund",
	"WRG": "Naya",
	"WBG": "Abzan",
	"WUR": "Jeskai",
	"UBG": "Sultai",
	"WBR": "Mardu",
	"URG": "Temur",

	"UBRG": "Glint-Eye",
	"WBRG": "Dune-Brood",
	"WURG": "Ink-Treader",
	"WUBG": "Witch-Maw",
	"WUBR": "Yore-Tiller",

	"WUBRG": "Five-Color",
}

// Normalize returns colors in WUBRG order without duplicates. Anything that
// is not one of the five colors is ignored; no colors at all gives "C".
func Normalize(colors []string) string {
	seen := make(map[byte]bool, len(colors))
	for _, c := range colors {
		c = strings.ToUpper(strings.TrimSpace(c))
		if len(c) == 1 && strings.Contains(colorOrder, c) {
			seen[c[0]] = true
		}
	}

	var identity strings.Builder
	for i := 0; i < len(colorOrder); i++ {
		if seen[colorOrder[i]] {
			identity.WriteByte(colorOrder[i])
		}
	}

	if identity.Len() == 0 {
		return "C"
	}
	return identity.String()
}

// Describe normalizes colors and names the result.
func Describe(colors []string) Identity {
	code := Normalize(colors)
	return Identity{Colors: code, Name: identityNames[code]}
}

// ColorName returns the full name for a color code.
func ColorName(color string) string {
	names := map[string]string{
		"W": "White",
		"U": "Blue",
		"B": "Black",
		"R": "Red",
		"G": "Green",
		"C": "Colorless",
	}
	if name, ok := names[color]; ok {
		return name
	}
	return color
}
