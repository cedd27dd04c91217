package grammar

import (
	"embed"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FallbackID identifies the grammar used when no signature matches. It
// extracts nothing but keeps the document around for manual review.
const FallbackID = "fallback"

//go:embed defs/*.yaml
var builtinDefs embed.FS

// Registry holds the registered company grammars in registration order.
// Detection applies signatures in that order, first match wins; registration
// rejects any grammar whose signature also matches another grammar's
// fixtures, so ties cannot occur.
type Registry struct {
	grammars []*Grammar
	byID     map[string]*Grammar
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Grammar)}
}

// Register compiles, validates, and adds a grammar spec. It fails when the
// id is taken, when the new grammar's signature matches a registered
// grammar's fixtures, or when a registered signature matches the new
// grammar's fixtures: signatures must stay mutually exclusive by construction.
func (r *Registry) Register(spec Spec) error {
	if _, exists := r.byID[spec.ID]; exists {
		return eris.Errorf("grammar: duplicate id %q", spec.ID)
	}
	if len(spec.Signature) == 0 {
		return eris.Errorf("grammar %s: signature is required", spec.ID)
	}
	if len(spec.Fixtures) == 0 {
		return eris.Errorf("grammar %s: at least one signature fixture is required", spec.ID)
	}

	g, err := Compile(spec)
	if err != nil {
		return err
	}

	if !g.MatchesSignature(strings.Join(spec.Fixtures, "\n")) {
		return eris.Errorf("grammar %s: signature does not match its own fixtures", spec.ID)
	}

	for _, other := range r.grammars {
		if other.MatchesSignature(strings.Join(spec.Fixtures, "\n")) {
			return eris.Errorf("grammar %s: signature of %s also matches its fixtures", spec.ID, other.ID)
		}
		if g.MatchesSignature(strings.Join(other.Fixtures, "\n")) {
			return eris.Errorf("grammar %s: signature also matches fixtures of %s", spec.ID, other.ID)
		}
	}

	r.grammars = append(r.grammars, g)
	r.byID[g.ID] = g
	return nil
}

// Get returns a grammar by id.
func (r *Registry) Get(id string) (*Grammar, bool) {
	g, ok := r.byID[id]
	return g, ok
}

// All returns the registered grammars in registration order.
func (r *Registry) All() []*Grammar {
	return r.grammars
}

// Fallback returns the grammar applied when detection finds no match: it
// matches no lines and treats nothing as furniture beyond blank lines.
func Fallback() *Grammar {
	return &Grammar{Spec: Spec{
		ID:             FallbackID,
		Kind:           "text",
		DateLayout:     "2006-01-02",
		BaseConfidence: 0.05,
	}}
}

// LoadBuiltins registers every embedded grammar definition.
func LoadBuiltins(r *Registry) error {
	entries, err := builtinDefs.ReadDir("defs")
	if err != nil {
		return eris.Wrap(err, "grammar: read builtin defs")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := builtinDefs.ReadFile("defs/" + name)
		if err != nil {
			return eris.Wrapf(err, "grammar: read builtin %s", name)
		}
		if err := registerYAML(r, name, data); err != nil {
			return err
		}
	}
	return nil
}

// LoadDir registers user-supplied grammar definitions from a directory of
// YAML files, on top of the built-ins. New company formats are added here
// without touching existing grammars.
func LoadDir(r *Registry, dir string) error {
	if dir == "" {
		return nil
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return eris.Wrapf(err, "grammar: glob %s", dir)
	}
	sort.Strings(paths)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "grammar: read %s", path)
		}
		if err := registerYAML(r, filepath.Base(path), data); err != nil {
			return err
		}
	}
	return nil
}

func registerYAML(r *Registry, name string, data []byte) error {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return eris.Wrapf(err, "grammar: unmarshal %s", name)
	}
	if err := r.Register(spec); err != nil {
		return err
	}
	zap.L().Debug("grammar: registered",
		zap.String("id", spec.ID),
		zap.String("source", name),
	)
	return nil
}
