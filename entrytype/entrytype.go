// Package entrytype classifies archive entries by name and content.
//
// A Registry holds an ordered list of rules and is immutable once built, so
// a single Registry can be shared by every archive a program opens. The
// bundled rules cover the common Doom and Build engine lump types; a YAML
// file in the same shape can extend or override them.
package entrytype

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Unknown is returned by Classify when no rule matches.
const Unknown = "unknown"

// textSample bounds how much of an entry the text heuristic inspects.
const textSample = 4096

//go:embed rules.yaml
var bundled []byte

// Magic is a byte signature expected at an offset.
// Exactly one of Hex or Text is set.
type Magic struct {
	Offset int    `yaml:"offset"`
	Hex    string `yaml:"hex,omitempty"`
	Text   string `yaml:"text,omitempty"`

	bytes []byte
}

// Rule describes one entry type.
//
// A rule matches when every constraint it sets holds. Names and
// Extensions are alternatives: when either list is set, the entry name must
// match one pattern from Names or one suffix from Extensions.
type Rule struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Extensions   []string `yaml:"extensions,omitempty"`
	Names        []string `yaml:"names,omitempty"`
	Magic        []Magic  `yaml:"magic,omitempty"`
	MinSize      int64    `yaml:"min_size,omitempty"`
	MaxSize      *int64   `yaml:"max_size,omitempty"`
	SizeMultiple int64    `yaml:"size_multiple,omitempty"`
	Priority     int      `yaml:"priority,omitempty"`
	Text         bool     `yaml:"text,omitempty"`
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	for i := range f.Rules {
		if err := f.Rules[i].compile(); err != nil {
			return nil, err
		}
	}
	return f.Rules, nil
}

func (r *Rule) compile() error {
	if r.ID == "" {
		return errors.New("rule without id")
	}
	if r.MinSize < 0 || r.SizeMultiple < 0 || (r.MaxSize != nil && *r.MaxSize < 0) {
		return fmt.Errorf("rule %s: negative size constraint", r.ID)
	}
	for i := range r.Names {
		r.Names[i] = strings.ToUpper(r.Names[i])
		if _, err := path.Match(r.Names[i], ""); err != nil {
			return fmt.Errorf("rule %s: name pattern %q: %w", r.ID, r.Names[i], err)
		}
	}
	for i := range r.Extensions {
		r.Extensions[i] = strings.ToLower(r.Extensions[i])
	}
	for i := range r.Magic {
		m := &r.Magic[i]
		switch {
		case m.Offset < 0:
			return fmt.Errorf("rule %s: negative magic offset", r.ID)
		case m.Hex != "" && m.Text != "", m.Hex == "" && m.Text == "":
			return fmt.Errorf("rule %s: magic needs exactly one of hex or text", r.ID)
		case m.Hex != "":
			b, err := hex.DecodeString(m.Hex)
			if err != nil {
				return fmt.Errorf("rule %s: magic hex: %w", r.ID, err)
			}
			m.bytes = b
		default:
			m.bytes = []byte(m.Text)
		}
	}
	return nil
}

func (r *Rule) matches(name string, data []byte) bool {
	if len(r.Names) > 0 || len(r.Extensions) > 0 {
		if !r.matchesName(name) {
			return false
		}
	}
	size := int64(len(data))
	if size < r.MinSize {
		return false
	}
	if r.MaxSize != nil && size > *r.MaxSize {
		return false
	}
	if r.SizeMultiple > 0 && size%r.SizeMultiple != 0 {
		return false
	}
	for _, m := range r.Magic {
		end := m.Offset + len(m.bytes)
		if end > len(data) || !bytes.Equal(data[m.Offset:end], m.bytes) {
			return false
		}
	}
	if r.Text && !looksLikeText(data) {
		return false
	}
	return true
}

func (r *Rule) matchesName(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range r.Names {
		if ok, _ := path.Match(pattern, upper); ok {
			return true
		}
	}
	ext := strings.ToLower(path.Ext(name))
	return ext != "" && slices.Contains(r.Extensions, ext)
}

func looksLikeText(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data[:min(len(data), textSample)]
	for len(sample) > 0 {
		r, n := utf8.DecodeRune(sample)
		if r == utf8.RuneError && n == 1 {
			// A multi-byte rune cut by the sample boundary is fine.
			return len(sample) < utf8.UTFMax && len(data) > textSample
		}
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' && r != 0x1a {
			return false
		}
		sample = sample[n:]
	}
	return true
}

// Registry is an immutable, priority-ordered set of rules.
type Registry struct {
	rules []Rule
	byID  map[string]int
}

// NewRegistry builds a registry from rules. Later rules replace earlier
// ones with the same id. Rules are tried in descending priority; ties keep
// their given order.
func NewRegistry(rules ...Rule) (*Registry, error) {
	reg := &Registry{byID: make(map[string]int, len(rules))}
	for _, r := range rules {
		r.Extensions = slices.Clone(r.Extensions)
		r.Names = slices.Clone(r.Names)
		r.Magic = slices.Clone(r.Magic)
		if err := r.compile(); err != nil {
			return nil, err
		}
		if i, ok := reg.byID[r.ID]; ok {
			reg.rules[i] = r
			continue
		}
		reg.byID[r.ID] = len(reg.rules)
		reg.rules = append(reg.rules, r)
	}
	slices.SortStableFunc(reg.rules, func(a, b Rule) int {
		return b.Priority - a.Priority
	})
	for i, r := range reg.rules {
		reg.byID[r.ID] = i
	}
	return reg, nil
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	rules, err := ParseRules(bundled)
	if err != nil {
		panic(fmt.Sprintf("entrytype: bundled rules: %v", err))
	}
	reg, err := NewRegistry(rules...)
	if err != nil {
		panic(fmt.Sprintf("entrytype: bundled rules: %v", err))
	}
	return reg
})

// Default returns the registry built from the bundled rules.
func Default() *Registry {
	return defaultRegistry()
}

// LoadRegistry returns the bundled rules extended by the rules in
// userFile. An empty userFile yields the bundled registry.
func LoadRegistry(userFile string) (*Registry, error) {
	if userFile == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(userFile) //nolint:gosec // user-supplied rules path
	if err != nil {
		return nil, err
	}
	user, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", userFile, err)
	}
	base := Default().Rules()
	return NewRegistry(append(base, user...)...)
}

// Classify returns the id of the highest-priority rule matching the entry,
// or Unknown.
func (r *Registry) Classify(name string, data []byte) string {
	for i := range r.rules {
		if r.rules[i].matches(name, data) {
			return r.rules[i].ID
		}
	}
	return Unknown
}

// Lookup returns the rule with the given id.
func (r *Registry) Lookup(id string) (Rule, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Rule{}, false
	}
	return r.rules[i], true
}

// Rules returns the rules in match order.
func (r *Registry) Rules() []Rule {
	return slices.Clone(r.rules)
}
