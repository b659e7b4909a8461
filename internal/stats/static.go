package stats

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticFetcher serves prefabricated bundles from memory. It backs the CLI
// dry-run path and the engine tests; production deployments plug a warehouse
// client into the same interfaces.
type StaticFetcher struct {
	Bundles map[string]*AdGroupBundle `yaml:"bundles"`
}

// NewStaticFetcher wraps a fixed bundle set.
func NewStaticFetcher(bundles map[string]*AdGroupBundle) *StaticFetcher {
	return &StaticFetcher{Bundles: bundles}
}

// LoadStaticFetcher reads bundles from a YAML snapshot file.
func LoadStaticFetcher(path string) (*StaticFetcher, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats snapshot %s: %w", path, err)
	}
	var f StaticFetcher
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to decode stats snapshot %s: %w", path, err)
	}
	if f.Bundles == nil {
		f.Bundles = map[string]*AdGroupBundle{}
	}
	return &f, nil
}

// FetchStatsBundle implements StatsFetcher.
func (f *StaticFetcher) FetchStatsBundle(_ context.Context, _ string, adGroupIDs []string) (map[string]map[string]*TargetBundle, error) {
	out := make(map[string]map[string]*TargetBundle, len(adGroupIDs))
	for _, id := range adGroupIDs {
		if b, ok := f.Bundles[id]; ok {
			out[id] = b.Targets
		}
	}
	return out, nil
}

// FetchSettingsBundle implements SettingsFetcher.
func (f *StaticFetcher) FetchSettingsBundle(_ context.Context, adGroupIDs []string) (map[string]AdGroup, error) {
	out := make(map[string]AdGroup, len(adGroupIDs))
	for _, id := range adGroupIDs {
		if b, ok := f.Bundles[id]; ok {
			out[id] = b.AdGroup
		}
	}
	return out, nil
}

// FetchBudgetsBundle implements BudgetsFetcher.
func (f *StaticFetcher) FetchBudgetsBundle(_ context.Context, adGroupIDs []string) (map[string]BudgetFacts, error) {
	out := make(map[string]BudgetFacts, len(adGroupIDs))
	for _, id := range adGroupIDs {
		if b, ok := f.Bundles[id]; ok {
			out[id] = b.Budgets
		}
	}
	return out, nil
}

// FetchCPAGoal implements CPAGoalFetcher.
func (f *StaticFetcher) FetchCPAGoal(_ context.Context, adGroupID string) (*CPAGoal, error) {
	if b, ok := f.Bundles[adGroupID]; ok {
		return b.CPAGoal, nil
	}
	return nil, nil
}

// AdGroupIDs lists the ad groups present in the snapshot, for the dry-run
// path where no target list is supplied externally.
func (f *StaticFetcher) AdGroupIDs() []string {
	ids := make([]string, 0, len(f.Bundles))
	for id := range f.Bundles {
		ids = append(ids, id)
	}
	return ids
}
