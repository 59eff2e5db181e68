package party

import "time"

// Weights for the two modulus-11 control digits of a Norwegian national
// identity number.
var (
	ninWeightsK1 = [9]int{3, 7, 6, 1, 8, 9, 4, 5, 2}
	ninWeightsK2 = [10]int{5, 4, 3, 2, 7, 6, 5, 4, 3, 2}
)

// IsValidNIN reports whether s is a syntactically valid 11-digit national
// identity number: a real calendar birth date, an individual number consistent
// with the derived century, and both modulus-11 control digits correct.
// No external lookup is performed here.
func IsValidNIN(s string) bool {
	if len(s) != 11 {
		return false
	}
	var digits [11]int
	for i := 0; i < 11; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
	}

	day := digits[0]*10 + digits[1]
	month := digits[2]*10 + digits[3]
	yy := digits[4]*10 + digits[5]
	individual := digits[6]*100 + digits[7]*10 + digits[8]

	year, ok := ninBirthYear(individual, yy)
	if !ok {
		return false
	}
	if !isRealDate(year, month, day) {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += digits[i] * ninWeightsK1[i]
	}
	k1 := 11 - sum%11
	if k1 == 11 {
		k1 = 0
	}
	if k1 == 10 || digits[9] != k1 {
		return false
	}

	sum = 0
	for i := 0; i < 9; i++ {
		sum += digits[i] * ninWeightsK2[i]
	}
	sum += k1 * ninWeightsK2[9]
	k2 := 11 - sum%11
	if k2 == 11 {
		k2 = 0
	}
	if k2 == 10 || digits[10] != k2 {
		return false
	}
	return true
}

// ninBirthYear derives the four-digit birth year from the individual number
// and the two-digit year.
//
//	individual 000-499 or 900-999 -> 1900 + yy
//	individual 500-999 and yy 00-39 -> 2000 + yy
func ninBirthYear(individual, yy int) (int, bool) {
	switch {
	case individual <= 499 || individual >= 900:
		return 1900 + yy, true
	case individual >= 500 && yy <= 39:
		return 2000 + yy, true
	default:
		return 0, false
	}
}

func isRealDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return d.Year() == year && int(d.Month()) == month && d.Day() == day
}
