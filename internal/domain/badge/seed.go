package badge

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/TEJ42000/ALLMS-sub004/internal/domain/shared"
)

// LoadDefinitionsYAML reads a badge catalog. Entries default to active;
// entries with unimplemented criteria are forced inactive and entries with
// unknown criteria keys are rejected.
func LoadDefinitionsYAML(r io.Reader) ([]Definition, error) {
	var raw struct {
		Badges []yaml.Node `yaml:"badges"`
	}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode badge catalog: %w", err)
	}

	defs := make([]Definition, 0, len(raw.Badges))
	seen := make(map[string]bool, len(raw.Badges))

	for i := range raw.Badges {
		def := Definition{Active: true}
		if err := raw.Badges[i].Decode(&def); err != nil {
			return nil, fmt.Errorf("decode badge #%d: %w", i+1, err)
		}
		if def.ID == "" {
			return nil, shared.WrapError("badge", "LoadDefinitions", shared.ErrValidation,
				fmt.Sprintf("badge #%d has no id", i+1), shared.ErrInvalidBadgeCriteria)
		}
		if seen[def.ID] {
			return nil, shared.WrapError("badge", "LoadDefinitions", shared.ErrValidation,
				fmt.Sprintf("duplicate badge id %q", def.ID), shared.ErrAlreadyExists)
		}
		seen[def.ID] = true

		criteria, err := ParseCriteria(def.Criteria)
		if err != nil {
			return nil, fmt.Errorf("badge %q: %w", def.ID, err)
		}
		if !implemented(criteria) {
			def.Active = false
		}
		defs = append(defs, def)
	}

	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}
