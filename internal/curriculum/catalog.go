package curriculum

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.schema.json
var catalogSchema string

var schemaLoader = gojsonschema.NewStringLoader(catalogSchema)

// Catalog is the typed curriculum configuration, in configuration order.
type Catalog struct {
	Subjects []SubjectConfig
}

// SubjectConfig describes one subject of the catalog.
type SubjectConfig struct {
	Name  string       `yaml:"-"`
	Icon  string       `yaml:"icon"`
	Color string       `yaml:"color"`
	Units []UnitConfig `yaml:"units"`
}

// UnitConfig describes one unit and its ordered topic names.
type UnitConfig struct {
	Name   string   `yaml:"name"`
	Topics []string `yaml:"topics"`
}

// ConfigError reports a structurally invalid catalog.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "curriculum config"
	if e.Path != "" {
		msg += ": " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ParseCatalog decodes a YAML catalog of the form
//
//	Mathematics:
//	  icon: "🔢"
//	  color: "#4CAF50"
//	  units:
//	    - name: Algebra
//	      topics: [Variables, Equations]
//
// Subject order follows the document. Unknown keys are ignored.
func ParseCatalog(data []byte) (Catalog, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Catalog{}, &ConfigError{Reason: "decode yaml", Err: err}
	}
	if doc == nil {
		return Catalog{}, nil
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return Catalog{}, &ConfigError{Reason: "validate shape", Err: err}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			problems = append(problems, re.String())
		}
		return Catalog{}, &ConfigError{Reason: strings.Join(problems, "; ")}
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Catalog{}, &ConfigError{Reason: "decode yaml", Err: err}
	}
	mapping := root.Content[0]

	var c Catalog
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i], mapping.Content[i+1]
		var sc SubjectConfig
		if err := value.Decode(&sc); err != nil {
			return Catalog{}, &ConfigError{Path: key.Value, Reason: "decode subject", Err: err}
		}
		sc.Name = key.Value
		c.Subjects = append(c.Subjects, sc)
	}

	c.normalize()
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Merge appends the subjects of other. Subject names must stay unique.
func (c *Catalog) Merge(other Catalog) error {
	merged := Catalog{Subjects: append(append([]SubjectConfig{}, c.Subjects...), other.Subjects...)}
	if err := merged.Validate(); err != nil {
		return err
	}
	c.Subjects = merged.Subjects
	return nil
}

// Validate checks the rules the schema cannot express.
func (c Catalog) Validate() error {
	subjects := make(map[string]bool, len(c.Subjects))
	for _, s := range c.Subjects {
		if strings.TrimSpace(s.Name) == "" {
			return &ConfigError{Reason: "subject name is empty"}
		}
		if subjects[s.Name] {
			return &ConfigError{Path: s.Name, Reason: "duplicate subject"}
		}
		subjects[s.Name] = true

		for i, u := range s.Units {
			path := fmt.Sprintf("%s.units[%d]", s.Name, i)
			if strings.TrimSpace(u.Name) == "" {
				return &ConfigError{Path: path, Reason: "unit name is empty"}
			}
			topics := make(map[string]bool, len(u.Topics))
			for _, t := range u.Topics {
				if strings.TrimSpace(t) == "" {
					return &ConfigError{Path: path, Reason: "topic name is empty"}
				}
				if topics[t] {
					return &ConfigError{Path: path, Reason: fmt.Sprintf("duplicate topic %q", t)}
				}
				topics[t] = true
			}
		}
	}
	return nil
}

// normalize rewrites every name to Unicode NFC so lookups match
// regardless of how the source file composed accents.
func (c *Catalog) normalize() {
	for i := range c.Subjects {
		s := &c.Subjects[i]
		s.Name = NormalizeName(s.Name)
		for j := range s.Units {
			u := &s.Units[j]
			u.Name = NormalizeName(u.Name)
			for k := range u.Topics {
				u.Topics[k] = NormalizeName(u.Topics[k])
			}
		}
	}
}

// NormalizeName returns the NFC form of a curriculum name.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}
