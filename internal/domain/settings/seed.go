package settings

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"staffbook/internal/platform/docstore"
)

// SeedFile is the YAML layout of default options:
//
//	categories:
//	  skills: [Teaching, Finance]
//	  schedules: [Morning, Afternoon]
type SeedFile struct {
	Categories map[string][]string `yaml:"categories"`
}

func ParseSeed(r io.Reader) (SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return SeedFile{}, fmt.Errorf("parse settings seed: %w", err)
	}
	for category := range seed.Categories {
		if err := validCategory(category); err != nil {
			return SeedFile{}, err
		}
	}
	return seed, nil
}

func LoadSeedFile(path string) (SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return SeedFile{}, err
	}
	defer f.Close()
	return ParseSeed(f)
}

// Seed adds the options of seed that are missing, keeping existing ones and
// their order. It returns the number of options added.
func (s *Service) Seed(ctx context.Context, seed SeedFile) (int, error) {
	added := 0
	err := s.store.Transact(ctx, func(txn *docstore.Txn) error {
		for _, category := range Categories {
			wanted := seed.Categories[category]
			if len(wanted) == 0 {
				continue
			}
			doc, _, err := txn.Document(collection, category)
			if err != nil {
				return err
			}
			options := optionList(doc)
			before := len(options)
			for _, value := range wanted {
				if strings.TrimSpace(value) == "" || slices.Contains(options, value) {
					continue
				}
				options = append(options, value)
			}
			if len(options) == before {
				continue
			}
			added += len(options) - before
			if err := txn.Set(docstore.Join(collection, category, "options"), toAny(options)); err != nil {
				return err
			}
		}
		return nil
	})
	return added, err
}
