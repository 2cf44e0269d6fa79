package limiter

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// seedFile is the blacklist seed document. A bare YAML list of numbers is
// accepted as well.
type seedFile struct {
	Numbers []string `yaml:"numbers"`
}

// LoadSeedFile reads blacklist numbers from a YAML file. An empty path yields
// no numbers.
func LoadSeedFile(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blacklist file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse blacklist file %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	var numbers []string
	switch doc := root.Content[0]; doc.Kind {
	case yaml.SequenceNode:
		err = doc.Decode(&numbers)
	case yaml.MappingNode:
		var file seedFile
		err = doc.Decode(&file)
		numbers = file.Numbers
	default:
		err = fmt.Errorf("expected a list or a numbers key")
	}
	if err != nil {
		return nil, fmt.Errorf("parse blacklist file %s: %w", path, err)
	}

	out := numbers[:0]
	for _, n := range numbers {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out, nil
}
