package catalog

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// document is the top level of a catalog file.
type document struct {
	Types []yaml.Node `yaml:"types"`
}

// typeSpec is one declared type. Which keys apply depends on kind; keys
// outside the kind's set are warned about and ignored.
type typeSpec struct {
	Name string `yaml:"name"`
	Kind string `yaml:"kind"`

	// Type names the base primitive (enum, bitfield, primitive alias).
	Type string `yaml:"type"`

	Base      string `yaml:"base"`
	Header    string `yaml:"header"`
	Padding   int    `yaml:"padding"`
	Order     string `yaml:"order"`
	LastExtra *bool  `yaml:"lastextra"`

	Fields []fieldSpec `yaml:"fields"`
	Bits   []bitSpec   `yaml:"bits"`

	Values  map[string]uint64 `yaml:"values"`
	Bitwise bool              `yaml:"bitwise"`

	Size       *sizeSpec       `yaml:"size"`
	Prepack    *prepackSpec    `yaml:"prepack"`
	Criteria   *criteriaSpec   `yaml:"criteria"`
	Classifier *classifierSpec `yaml:"classifier"`
	ClassifyBy []uint64        `yaml:"classifyby"`
	Init       *initSpec       `yaml:"init"`
	Extend     map[string]string `yaml:"extend"`
}

// fieldSpec is one record field. An absent name declares padding or an
// embedded record; an explicit count declares an array, zero meaning a
// variable trailing array.
type fieldSpec struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Count *int   `yaml:"count"`
}

// bitSpec is one bit field. An absent name declares padding bits.
type bitSpec struct {
	Width int    `yaml:"width"`
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

// sizeSpec declares the total-size hook: the record's size is read from the
// named field. A negative or absent limit means unbounded.
type sizeSpec struct {
	Field fieldPath `yaml:"field"`
	Limit *int      `yaml:"limit"`
}

// prepackSpec declares the pre-serialization hook. Exactly one key may be
// set: realsize/size store the record's size into the named field, set stores
// constants.
type prepackSpec struct {
	RealSize fieldPath         `yaml:"realsize"`
	Size     fieldPath         `yaml:"size"`
	Set      map[string]uint64 `yaml:"set"`
}

// criteriaSpec declares predicate dispatch: the subtype matches when the
// named base field equals the value.
type criteriaSpec struct {
	Field  fieldPath `yaml:"field"`
	Equals uint64    `yaml:"equals"`
}

// classifierSpec declares keyed dispatch on the named field.
type classifierSpec struct {
	Field fieldPath `yaml:"field"`
}

// initSpec declares field constants stored on every new value.
type initSpec struct {
	Set map[string]uint64 `yaml:"set"`
}

// fieldPath is a field reference: either a dotted scalar ("s1.post") or a
// YAML sequence of path legs.
type fieldPath []string

func (p *fieldPath) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*p = splitDots(s)
		return nil
	case yaml.SequenceNode:
		var legs []string
		if err := node.Decode(&legs); err != nil {
			return err
		}
		*p = legs
		return nil
	default:
		return fmt.Errorf("line %d: field path must be a string or a list", node.Line)
	}
}

func splitDots(s string) []string {
	var legs []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			legs = append(legs, s[start:i])
			start = i + 1
		}
	}
	return append(legs, s[start:])
}

// specKeys lists the keys each kind honors. The name and kind keys are always
// allowed.
var specKeys = map[string][]string{
	"struct":    {"base", "padding", "order", "lastextra", "fields", "size", "prepack", "criteria", "classifier", "classifyby", "init", "extend"},
	"enum":      {"type", "values", "bitwise"},
	"bitfield":  {"type", "bits", "init", "prepack", "extend"},
	"variant":   {"header", "padding", "classifier", "prepack"},
	"primitive": {"type"},
}

// checkKeys warns about mapping keys the kind does not honor, mirroring the
// unsupported-option warnings of programmatic definitions.
func checkKeys(node *yaml.Node, name, kind string) {
	allowed, ok := specKeys[kind]
	if !ok {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if key == "name" || key == "kind" {
			continue
		}
		known := false
		for _, k := range allowed {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			Logger().Warn("catalog key is not supported by this kind",
				zap.String("type", name),
				zap.String("kind", kind),
				zap.String("key", key),
				zap.Int("line", node.Content[i].Line))
		}
	}
}
