package settings

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/makeomatic/internal/domain/builderr"
)

// Get returns the value of a dotted settings key such as
// "project.buildtype", rendered as text. Lists and maps are rendered as
// YAML.
func (s *Settings) Get(key string) (string, error) {
	tree, err := s.tree()
	if err != nil {
		return "", err
	}
	var node any = tree
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return "", builderr.Configuration("no such setting %q", key)
		}
		node, ok = m[part]
		if !ok {
			return "", builderr.Configuration("no such setting %q", key)
		}
	}
	switch v := node.(type) {
	case map[string]any, []any:
		out, err := yaml.Marshal(v)
		if err != nil {
			return "", builderr.Wrap(builderr.KindFramework, err, "cannot render setting "+key)
		}
		return strings.TrimRight(string(out), "\n"), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}

// Keys returns every leaf key, sorted.
func (s *Settings) Keys() ([]string, error) {
	tree, err := s.tree()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			full := k
			if prefix != "" {
				full = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(full, child)
				continue
			}
			keys = append(keys, full)
		}
	}
	walk("", tree)
	sort.Strings(keys)
	return keys, nil
}

func (s *Settings) tree() (map[string]any, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, builderr.Wrap(builderr.KindFramework, err, "cannot render settings")
	}
	tree := make(map[string]any)
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, builderr.Wrap(builderr.KindFramework, err, "cannot render settings")
	}
	return tree, nil
}
