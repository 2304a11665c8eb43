package types

import (
	"fmt"
	"strconv"
)

// Ratio is a fraction that may be undefined (zero denominator)
type Ratio struct {
	Value   float64
	Defined bool
}

// NA is the undefined ratio
var NA = Ratio{}

// NewRatio divides num by den; a zero denominator yields NA
func NewRatio(num, den float64) Ratio {
	if den == 0 {
		return NA
	}
	return Ratio{Value: num / den, Defined: true}
}

// DefinedRatio returns a defined ratio with the given value
func DefinedRatio(v float64) Ratio {
	return Ratio{Value: v, Defined: true}
}

// String renders the ratio with two decimals or N/A
func (r Ratio) String() string {
	if !r.Defined {
		return "N/A"
	}
	return strconv.FormatFloat(r.Value, 'f', 2, 64)
}

// Percent renders the ratio as a percentage with one decimal or N/A
func (r Ratio) Percent() string {
	if !r.Defined {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", r.Value*100)
}

// MarshalJSON encodes undefined ratios as null
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, r.Value, 'f', -1, 64), nil
}

// UnmarshalJSON decodes null as an undefined ratio
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = NA
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("invalid ratio %q: %w", data, err)
	}
	*r = DefinedRatio(v)
	return nil
}
