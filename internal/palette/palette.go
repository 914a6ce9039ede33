// Package palette provides the fixed set of branch display colors.
// Colors live in an embedded YAML file so the frontend team can tune them
// without touching engine code.
package palette

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Palette holds the branch color set loaded from the embedded config.
type Palette struct {
	Colors        []string `yaml:"colors"`
	OriginalColor string   `yaml:"original_color"`
}

// Load parses the embedded branch color configuration.
func Load() (*Palette, error) {
	data, err := configFiles.ReadFile("config/branches.yaml")
	if err != nil {
		return nil, fmt.Errorf("read branch palette: %w", err)
	}

	var p Palette
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal branch palette: %w", err)
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("branch palette is empty")
	}
	return &p, nil
}

// ColorFor returns the display color for a branch label index.
// Index 0 is "Original"; branch N maps to (N-1) mod len(Colors).
func (p *Palette) ColorFor(labelIndex int) string {
	if labelIndex <= 0 {
		return p.OriginalColor
	}
	return p.Colors[(labelIndex-1)%len(p.Colors)]
}
