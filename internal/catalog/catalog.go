// Package catalog ships the sample question sets bundled with the service.
// Each language lives in its own data/<language>.json file.
package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"

	"bahasa-quiz-service/internal/domain"
)

//go:embed data/*.json
var bundled embed.FS

type languageFile struct {
	Language string     `json:"language"`
	Sets     []setEntry `json:"sets"`
}

type setEntry struct {
	Game      domain.Game       `json:"game"`
	Level     int               `json:"level"`
	Questions []domain.Question `json:"questions"`
}

// Load parses the bundled catalog.
func Load() (map[domain.SetKey][]domain.Question, error) {
	return Parse(bundled, "data")
}

// Parse reads every *.json file in dir and validates each set against its key.
func Parse(fsys fs.FS, dir string) (map[domain.SetKey][]domain.Question, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	sets := make(map[domain.SetKey][]domain.Question)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		var file languageFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}

		for _, set := range file.Sets {
			key := domain.SetKey{Language: file.Language, Game: set.Game, Level: set.Level}
			if err := key.Validate(); err != nil {
				return nil, fmt.Errorf("%s: %w", entry.Name(), err)
			}
			if _, dup := sets[key]; dup {
				return nil, fmt.Errorf("%s: duplicate set %s", entry.Name(), key)
			}
			if err := domain.ValidateSet(key, set.Questions); err != nil {
				return nil, fmt.Errorf("%s: set %s: %w", entry.Name(), key, err)
			}
			sets[key] = set.Questions
		}
	}
	return sets, nil
}
