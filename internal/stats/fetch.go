package stats

import "context"

// StatsFetcher produces windowed metric rows per target for a rule run.
type StatsFetcher interface {
	FetchStatsBundle(ctx context.Context, targetType string, adGroupIDs []string) (map[string]map[string]*TargetBundle, error)
}

// SettingsFetcher produces entity settings per ad group target.
type SettingsFetcher interface {
	FetchSettingsBundle(ctx context.Context, adGroupIDs []string) (map[string]AdGroup, error)
}

// BudgetsFetcher produces campaign budget facts per ad group.
type BudgetsFetcher interface {
	FetchBudgetsBundle(ctx context.Context, adGroupIDs []string) (map[string]BudgetFacts, error)
}

// CPAGoalFetcher resolves the primary CPA goal of an ad group's campaign,
// or nil when the campaign has none.
type CPAGoalFetcher interface {
	FetchCPAGoal(ctx context.Context, adGroupID string) (*CPAGoal, error)
}

// Loader composes the fetch collaborators into ready-to-evaluate
// AdGroupBundles. All fetches happen up front, in bulk, before the engine
// enters its per-target loop.
type Loader struct {
	Stats    StatsFetcher
	Settings SettingsFetcher
	Budgets  BudgetsFetcher
	CPAGoals CPAGoalFetcher
}

// Load prefetches bundles for every ad group a rule targets.
func (l *Loader) Load(ctx context.Context, targetType string, adGroupIDs []string) (map[string]*AdGroupBundle, error) {
	statsByAdGroup, err := l.Stats.FetchStatsBundle(ctx, targetType, adGroupIDs)
	if err != nil {
		return nil, err
	}
	settings, err := l.Settings.FetchSettingsBundle(ctx, adGroupIDs)
	if err != nil {
		return nil, err
	}
	budgets, err := l.Budgets.FetchBudgetsBundle(ctx, adGroupIDs)
	if err != nil {
		return nil, err
	}

	bundles := make(map[string]*AdGroupBundle, len(adGroupIDs))
	for _, id := range adGroupIDs {
		// An ID the settings fetcher does not know is not a real ad group;
		// building an empty bundle for it would make the runner evaluate a
		// phantom unit and leave an audit row with blank metadata.
		adGroup, ok := settings[id]
		if !ok {
			continue
		}
		goal, err := l.CPAGoals.FetchCPAGoal(ctx, id)
		if err != nil {
			return nil, err
		}
		bundles[id] = &AdGroupBundle{
			AdGroup: adGroup,
			Targets: statsByAdGroup[id],
			Budgets: budgets[id],
			CPAGoal: goal,
		}
	}
	return bundles, nil
}
