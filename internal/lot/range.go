package lot

import (
	"fmt"
	"strings"
)

// Range is an inclusive span of identifiers sharing a suffix. Padding width
// is taken from the start identifier.
type Range struct {
	Start Identifier
	End   Identifier
}

// ParseRange parses range text of the form "<digits><suffix>-<digits><suffix>",
// e.g. "100A-105A" or "00100-00103". Exactly one hyphen separates the two
// tokens, both tokens must carry the same suffix (case-insensitive), and the
// start number must not exceed the end number.
func ParseRange(text string) (Range, error) {
	parts := strings.Split(text, "-")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, text)
	}

	start, err := Parse(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, text)
	}
	end, err := Parse(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q", ErrMalformedRange, text)
	}

	if start.Suffix != end.Suffix {
		return Range{}, fmt.Errorf("%w: %q vs %q", ErrSuffixMismatch, start.Suffix, end.Suffix)
	}
	if start.Number > end.Number {
		return Range{}, fmt.Errorf("%w: %d > %d", ErrInvalidOrder, start.Number, end.Number)
	}

	return Range{Start: start, End: end}, nil
}

// Count returns the number of identifiers in the range.
func (r Range) Count() int {
	return r.End.Number - r.Start.Number + 1
}

// Expand materializes the inclusive identifier sequence, numeric part
// incrementing by one and padded to the start token's width.
func (r Range) Expand() []Identifier {
	return Sequence(r.Start, r.Count())
}
