package fruit

import (
	"fmt"
	"strings"
)

// Label is one of the six classes the freshness model was trained on.
// The numeric value is the model output index and must not be reordered.
type Label int

const (
	FreshApples Label = iota
	FreshBanana
	FreshOranges
	RottenApples
	RottenBanana
	RottenOranges
)

// NumLabels is the output width the model head must have.
const NumLabels = 6

const (
	Fresh  = "fresh"
	Rotten = "rotten"
)

// labelNames is indexed by Label. Order follows the ImageFolder (alphabetical)
// ordering used when the weights were produced.
var labelNames = [NumLabels]string{
	FreshApples:   "freshapples",
	FreshBanana:   "freshbanana",
	FreshOranges:  "freshoranges",
	RottenApples:  "rottenapples",
	RottenBanana:  "rottenbanana",
	RottenOranges: "rottenoranges",
}

// Catalog returns every label in index order.
func Catalog() []Label {
	out := make([]Label, NumLabels)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

// LabelAt maps a model output index to its label.
func LabelAt(index int) (Label, error) {
	if index < 0 || index >= NumLabels {
		return 0, fmt.Errorf("label index %d out of range [0,%d)", index, NumLabels)
	}
	return Label(index), nil
}

// ParseLabel is the inverse of Label.String.
func ParseLabel(s string) (Label, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range labelNames {
		if name == s {
			return Label(i), true
		}
	}
	return 0, false
}

func (l Label) Valid() bool {
	return l >= 0 && int(l) < NumLabels
}

func (l Label) Index() int {
	return int(l)
}

func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// Freshness returns "fresh" or "rotten".
func (l Label) Freshness() string {
	if strings.HasPrefix(l.String(), Rotten) {
		return Rotten
	}
	return Fresh
}

// Fruit returns the fruit suffix as it appears in the label, e.g. "apples".
func (l Label) Fruit() string {
	name := l.String()
	name = strings.TrimPrefix(name, Rotten)
	return strings.TrimPrefix(name, Fresh)
}

// LookupName is the singular name used as the nutrition API key.
func (l Label) LookupName() string {
	return CleanFruitName(l.String())
}

// MarshalText lets labels serialize as their names in JSON.
func (l Label) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid label %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(text []byte) error {
	parsed, ok := ParseLabel(string(text))
	if !ok {
		return fmt.Errorf("unknown label %q", string(text))
	}
	*l = parsed
	return nil
}

// CleanFruitName strips the freshness prefix, lower-cases and drops one
// trailing plural "s": "freshapples" -> "apple", "rottenbanana" -> "banana".
func CleanFruitName(s string) string {
	s = strings.ReplaceAll(s, Fresh, "")
	s = strings.ReplaceAll(s, Rotten, "")
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSuffix(s, "s")
}
