package rules

import (
	"fmt"
	"strings"

	"github.com/trafficops/adrules/internal/entities"
	"github.com/trafficops/adrules/internal/stats"
)

// ExpandMacros substitutes macro placeholders in an email subject or body.
// Falls back to a default sentence when the template is empty.
func ExpandMacros(tmpl string, rule *entities.Rule, adGroup stats.AdGroup, changesText string) string {
	if tmpl == "" {
		return fmt.Sprintf("Rule %q ran on ad group %s.", rule.Name, adGroup.Name)
	}
	pairs := []string{
		"{{rule_name}}", rule.Name,
		"{{action}}", rule.ActionType,
		"{{target_type}}", rule.TargetType,
		"{{ad_group_id}}", adGroup.ID,
		"{{ad_group_name}}", adGroup.Name,
		"{{campaign_id}}", adGroup.CampaignID,
		"{{changes}}", changesText,
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
