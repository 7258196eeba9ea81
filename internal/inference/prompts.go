package inference

import (
	_ "embed"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

// Prompt is one instruction template variant.
type Prompt struct {
	Name        string `yaml:"-"`
	Description string `yaml:"description"`
	Text        string `yaml:"text"`
}

// Prompts returns the embedded instruction catalogue keyed by name.
func Prompts() (map[string]Prompt, error) {
	var m map[string]Prompt
	if err := yaml.Unmarshal(promptsYAML, &m); err != nil {
		return nil, eris.Wrap(err, "inference: parse prompts")
	}
	for name, p := range m {
		p.Name = name
		p.Text = strings.TrimSpace(p.Text)
		m[name] = p
	}
	return m, nil
}

// Instruction returns the text of the named prompt.
func Instruction(name string) (string, error) {
	m, err := Prompts()
	if err != nil {
		return "", err
	}
	p, ok := m[name]
	if !ok {
		names := make([]string, 0, len(m))
		for n := range m {
			names = append(names, n)
		}
		sort.Strings(names)
		return "", eris.Errorf("inference: unknown prompt %q (have %s)", name, strings.Join(names, ", "))
	}
	return p.Text, nil
}
