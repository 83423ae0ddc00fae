package document

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ReplayIndex is the name of the file mapping URLs to saved pages inside a
// replay directory.
const ReplayIndex = "index.yaml"

// LoadReplay builds a StaticBrowser from a directory of saved pages.
// index.yaml maps each URL to a file name relative to dir.
func LoadReplay(dir string) (*StaticBrowser, error) {
	data, err := os.ReadFile(filepath.Join(dir, ReplayIndex))
	if err != nil {
		return nil, fmt.Errorf("read replay index: %w", err)
	}

	var index map[string]string
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse replay index: %w", err)
	}

	pages := make(map[string]string, len(index))
	for url, file := range index {
		html, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return nil, fmt.Errorf("replay page for %s: %w", url, err)
		}
		pages[url] = string(html)
	}
	return NewStaticBrowser(pages), nil
}
