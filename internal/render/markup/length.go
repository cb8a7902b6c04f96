package markup

// Length returns the number of UTF-16 code units needed to encode s.
// Chat platform limits count in UTF-16 code units, not Unicode code points:
// characters outside the BMP (emoji, etc.) take a surrogate pair.
func Length(s string) int {
	units := 0

	for _, r := range s {
		units += runeUnits(r)
	}

	return units
}

func runeUnits(r rune) int {
	if r > 0xFFFF {
		return 2
	}

	return 1
}

// prefixBytes returns the byte offset of the longest prefix of s that fits
// within maxUnits UTF-16 code units. It never splits a rune.
func prefixBytes(s string, maxUnits int) int {
	if maxUnits <= 0 {
		return 0
	}

	units := 0

	for i, r := range s {
		u := runeUnits(r)
		if units+u > maxUnits {
			return i
		}

		units += u
	}

	return len(s)
}
