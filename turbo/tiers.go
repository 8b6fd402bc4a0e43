// Package turbo classifies resource requests into block/allow decisions and
// derives page-transform directives from a tiered rule set. Tiers are a
// closed set; switching tier replaces the active rules wholesale, while the
// custom block and whitelist sets persist across tier changes.
package turbo

import "fmt"

// Tier is a named preset bundle of blocking and transform flags.
type Tier int

const (
	TierOff Tier = iota
	TierLight
	TierMedium
	TierExtreme
)

// String returns the lowercase tier name.
func (t Tier) String() string {
	switch t {
	case TierOff:
		return "off"
	case TierLight:
		return "light"
	case TierMedium:
		return "medium"
	case TierExtreme:
		return "extreme"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// ParseTier parses a tier name.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "off":
		return TierOff, nil
	case "light":
		return TierLight, nil
	case "medium":
		return TierMedium, nil
	case "extreme":
		return TierExtreme, nil
	default:
		return TierOff, fmt.Errorf("turbo: unknown tier %q", s)
	}
}

// RuleSet is the full flag bundle bound to a tier.
type RuleSet struct {
	BlockImages     bool
	BlockVideo      bool
	BlockAds        bool
	BlockTrackers   bool
	BlockAnalytics  bool
	BlockSocial     bool
	BlockFonts      bool
	BlockAnimations bool
	DeferScripts    bool
	CompressPages   bool
}

// Rules returns the preset rule set for the tier. Unknown tiers behave
// like TierOff.
func (t Tier) Rules() RuleSet {
	switch t {
	case TierLight:
		return RuleSet{
			BlockAds:      true,
			BlockTrackers: true,
		}
	case TierMedium:
		return RuleSet{
			BlockAds:        true,
			BlockTrackers:   true,
			BlockAnalytics:  true,
			BlockSocial:     true,
			BlockAnimations: true,
			DeferScripts:    true,
		}
	case TierExtreme:
		return RuleSet{
			BlockImages:     true,
			BlockVideo:      true,
			BlockAds:        true,
			BlockTrackers:   true,
			BlockAnalytics:  true,
			BlockSocial:     true,
			BlockFonts:      true,
			BlockAnimations: true,
			DeferScripts:    true,
			CompressPages:   true,
		}
	default:
		return RuleSet{}
	}
}
