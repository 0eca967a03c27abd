package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed partners.yaml
var defaultPartnersYAML []byte

// PartnerContract is one curated contract probed during partner detection.
type PartnerContract struct {
	Name     string `yaml:"name"`
	Contract string `yaml:"contract"`
}

// PartnerLists holds the curated contracts for every network.
type PartnerLists struct {
	Networks map[string][]PartnerContract `yaml:"networks"`
}

// ForNetwork returns the curated list for a network, or nil when the
// network has none.
func (p *PartnerLists) ForNetwork(network string) []PartnerContract {
	if p == nil {
		return nil
	}
	return p.Networks[network]
}

// LoadPartnerLists reads curated lists from path, or the embedded defaults
// when path is empty.
func LoadPartnerLists(path string) (*PartnerLists, error) {
	data := defaultPartnersYAML
	source := "embedded"

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read partners file %q: %w", path, err)
		}
		data = raw
		source = path
	}

	lists, err := ParsePartnerLists(data)
	if err != nil {
		return nil, fmt.Errorf("partners from %s: %w", source, err)
	}

	total := 0
	for _, l := range lists.Networks {
		total += len(l)
	}
	slog.Info("partner lists loaded",
		"source", source,
		"networks", len(lists.Networks),
		"contracts", total,
	)

	return lists, nil
}

// ParsePartnerLists decodes a YAML partner document.
func ParsePartnerLists(data []byte) (*PartnerLists, error) {
	var lists PartnerLists
	if err := yaml.Unmarshal(data, &lists); err != nil {
		return nil, fmt.Errorf("%w: parse partners yaml: %v", ErrInvalidConfig, err)
	}
	if lists.Networks == nil {
		lists.Networks = make(map[string][]PartnerContract)
	}
	for network := range lists.Networks {
		if _, ok := ChainIDs[network]; !ok {
			return nil, fmt.Errorf("%w: partners yaml references %q", ErrUnknownNetwork, network)
		}
	}
	return &lists, nil
}
