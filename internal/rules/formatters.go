package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/trafficops/adrules/internal/entities"
)

// Noun is the human phrase for a target type.
type Noun struct {
	Singular string
	Plural   string
}

var targetNouns = map[string]Noun{
	TargetAdGroup:   {"ad group", "ad groups"},
	TargetAd:        {"ad", "ads"},
	TargetPublisher: {"publisher", "publishers"},
	TargetSource:    {"media source", "media sources"},
	TargetDevice:    {"device", "devices"},
	TargetCountry:   {"country", "countries"},
	TargetState:     {"state", "states"},
	TargetDMA:       {"DMA", "DMAs"},
	TargetOS:        {"operating system", "operating systems"},
}

// TargetNoun returns the noun phrase for a target type.
func TargetNoun(targetType string) Noun {
	if n, ok := targetNouns[targetType]; ok {
		return n
	}
	return Noun{"target", "targets"}
}

// DisplayNames maps raw target keys to human-readable names.
type DisplayNames interface {
	Name(targetType, target string) string
}

// NameService resolves display names with per-run memoization. It is built
// once per batch run and passed by reference; there is no hidden package
// state shared between concurrent rule evaluations.
type NameService struct {
	cache   *gocache.Cache
	sources map[string]string
}

// NewNameService creates a NameService. sources maps source slugs to
// display names; it is typically loaded once from the source catalog.
func NewNameService(sources map[string]string) *NameService {
	return &NameService{
		cache:   gocache.New(time.Hour, 10*time.Minute),
		sources: sources,
	}
}

// Name implements DisplayNames.
func (s *NameService) Name(targetType, target string) string {
	key := targetType + ":" + target
	if cached, ok := s.cache.Get(key); ok {
		return cached.(string)
	}
	name := s.lookup(targetType, target)
	s.cache.Set(key, name, gocache.DefaultExpiration)
	return name
}

func (s *NameService) lookup(targetType, target string) string {
	switch targetType {
	case TargetCountry:
		if region, err := language.ParseRegion(target); err == nil {
			if name := display.English.Regions().Name(region); name != "" {
				return name
			}
		}
	case TargetSource:
		if name, ok := s.sources[target]; ok {
			return name
		}
	case TargetPublisher:
		publisher, _ := SplitPublisherTarget(target)
		return publisher
	}
	return target
}

// ActionFormatter renders the audit text for one action family.
type ActionFormatter interface {
	// Format renders a non-empty change list.
	Format(noun Noun, changes []entities.ValueChange, names DisplayNames, targetType string) string
	// Empty returns the exact sentinel sentence for a run with no changes.
	Empty(noun Noun) string
}

// actionFormatters is the static dispatch table, built at startup. One
// implementation per action family instead of per-call closures.
var actionFormatters = map[string]ActionFormatter{
	ActionIncreaseBidModifier: adjustmentFormatter{verb: "Increased", what: "bid modifiers"},
	ActionDecreaseBidModifier: adjustmentFormatter{verb: "Decreased", what: "bid modifiers"},
	ActionIncreaseBid:         adjustmentFormatter{verb: "Increased", what: "bids"},
	ActionDecreaseBid:         adjustmentFormatter{verb: "Decreased", what: "bids"},
	ActionIncreaseBudget:      adjustmentFormatter{verb: "Increased", what: "daily budgets"},
	ActionDecreaseBudget:      adjustmentFormatter{verb: "Decreased", what: "daily budgets"},
	ActionTurnOff:             pausedFormatter{},
	ActionBlacklist:           groupFormatter{verb: "Blacklisted"},
	ActionAddToPublisherGroup: groupFormatter{verb: "Added to publisher group"},
	ActionNotify:              messageFormatter{},
	ActionSendEmail:           messageFormatter{},
}

// FormatChanges turns a set of per-target value changes into the audit text
// for a rule run. An empty change list yields the action family's sentinel
// sentence for the rule's target noun; a non-empty list never does.
func FormatChanges(rule *entities.Rule, changes []entities.ValueChange, names DisplayNames) string {
	noun := TargetNoun(rule.TargetType)
	formatter, ok := actionFormatters[rule.ActionType]
	if !ok {
		formatter = messageFormatter{}
	}
	if len(changes) == 0 {
		return formatter.Empty(noun)
	}
	sorted := make([]entities.ValueChange, len(changes))
	copy(sorted, changes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Target < sorted[j].Target })
	return formatter.Format(noun, sorted, names, rule.TargetType)
}

type adjustmentFormatter struct {
	verb string
	what string
}

func (f adjustmentFormatter) Format(noun Noun, changes []entities.ValueChange, names DisplayNames, targetType string) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, fmt.Sprintf("%s (%s to %s)",
			names.Name(targetType, c.Target), formatScalar(c.OldValue), formatScalar(c.NewValue)))
	}
	return fmt.Sprintf("%s %s for %s: %s.", f.verb, f.what, noun.Plural, strings.Join(parts, ", "))
}

func (f adjustmentFormatter) Empty(noun Noun) string {
	return fmt.Sprintf("Rule didn't change any %s %s.", noun.Singular, f.what)
}

type pausedFormatter struct{}

func (pausedFormatter) Format(noun Noun, changes []entities.ValueChange, names DisplayNames, targetType string) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, names.Name(targetType, c.Target))
	}
	return fmt.Sprintf("Turned off %s: %s.", noun.Plural, strings.Join(parts, ", "))
}

func (pausedFormatter) Empty(noun Noun) string {
	return fmt.Sprintf("Rule didn't turn off any %s.", noun.Plural)
}

type groupFormatter struct {
	verb string
}

func (f groupFormatter) Format(noun Noun, changes []entities.ValueChange, names DisplayNames, targetType string) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, names.Name(targetType, c.Target))
	}
	return fmt.Sprintf("%s %s: %s.", f.verb, noun.Plural, strings.Join(parts, ", "))
}

func (f groupFormatter) Empty(noun Noun) string {
	return fmt.Sprintf("Rule didn't match any %s; publisher groups were left unchanged.", noun.Plural)
}

type messageFormatter struct{}

func (messageFormatter) Format(noun Noun, changes []entities.ValueChange, names DisplayNames, targetType string) string {
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		parts = append(parts, names.Name(targetType, c.Target))
	}
	return fmt.Sprintf("Sent notification for matched %s: %s.", noun.Plural, strings.Join(parts, ", "))
}

func (messageFormatter) Empty(noun Noun) string {
	return fmt.Sprintf("Rule didn't match any %s; no notification was sent.", noun.Plural)
}

func formatScalar(v any) string {
	switch n := v.(type) {
	case float64:
		return fmt.Sprintf("%.2f", n)
	case float32:
		return fmt.Sprintf("%.2f", n)
	default:
		return fmt.Sprintf("%v", v)
	}
}
