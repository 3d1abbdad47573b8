package plan

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlSource loads tier limits from a YAML file. The file maps tier names to
// limit definitions:
//
//	pro:
//	  monthly_quota: 500
//	  daily_quota: 100
//	  overage_unit_price:
//	    amount: 12
//	    currency: USD
//	  features: [api, bulk_export]
type yamlSource struct {
	path string
}

// NewYAMLSource returns a Source that reads tier limits from the given file.
// The file is read on every Load call so a restart picks up edits.
func NewYAMLSource(path string) Source {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(ctx context.Context) (map[Tier]Limits, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file %s: %w", s.path, err)
	}

	var limits map[Tier]Limits
	if err := yaml.Unmarshal(raw, &limits); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", s.path, err)
	}

	return limits, nil
}
