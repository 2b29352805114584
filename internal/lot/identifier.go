// Package lot parses and generates lot identifiers. A lot identifier is a
// fixed-width, left-zero-padded number followed by an optional alphabetic
// suffix ("00123A"). Identifiers whose suffixes match form a series ordered
// by the numeric component.
package lot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^(\d+)([A-Za-z]*)$`)

// Identifier is a parsed lot identifier. Width records the literal digit
// count of the source text so that String reproduces the original padding.
type Identifier struct {
	Number int
	Width  int
	Suffix string
}

// Parse converts text such as "00123A" into an Identifier. The suffix is
// normalized to uppercase.
func Parse(text string) (Identifier, error) {
	trimmed := strings.TrimSpace(text)
	m := identifierPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, text)
	}

	number, err := strconv.Atoi(m[1])
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, text)
	}

	return Identifier{
		Number: number,
		Width:  len(m[1]),
		Suffix: strings.ToUpper(m[2]),
	}, nil
}

// String renders the identifier with its original zero padding. Numbers that
// outgrow the recorded width render at their natural length.
func (id Identifier) String() string {
	return fmt.Sprintf("%0*d%s", id.Width, id.Number, id.Suffix)
}

// Next returns the following identifier in the series.
func (id Identifier) Next() Identifier {
	return Identifier{Number: id.Number + 1, Width: id.Width, Suffix: id.Suffix}
}

// Sequence generates n consecutive identifiers starting at start.
func Sequence(start Identifier, n int) []Identifier {
	if n <= 0 {
		return []Identifier{}
	}

	out := make([]Identifier, n)
	for i := range out {
		out[i] = Identifier{Number: start.Number + i, Width: start.Width, Suffix: start.Suffix}
	}
	return out
}
