package turbo

// FilterRule is a declarative page-transform directive. The engine only
// derives rules from the active tier; applying them is the renderer's job.
type FilterRule struct {
	Name     string `json:"name"`
	Selector string `json:"selector,omitempty"`
	Action   string `json:"action"` // "hide", "remove" or "style"
	CSS      string `json:"css,omitempty"`
}

// ScriptOverride is a declarative script-behavior directive derived from
// the active tier.
type ScriptOverride struct {
	Name   string `json:"name"`
	Script string `json:"script"`
}

// ContentFilterRules returns the transform directives for the active tier,
// in application order. The result is deterministic given the tier.
func (e *Engine) ContentFilterRules() []FilterRule {
	rules := e.Rules()

	var out []FilterRule
	if rules.BlockAds {
		out = append(out, FilterRule{
			Name:     "hide-ad-containers",
			Selector: `[id*="ad-"], [class*="advert"], [class*="sponsored"], iframe[src*="ads"]`,
			Action:   "hide",
			CSS:      "display:none !important;",
		})
	}
	if rules.BlockAnimations {
		out = append(out, FilterRule{
			Name:   "suppress-animations",
			Action: "style",
			CSS:    "*, *::before, *::after { animation: none !important; transition: none !important; }",
		})
	}
	if rules.BlockImages {
		out = append(out, FilterRule{
			Name:     "hide-images",
			Selector: "img, picture",
			Action:   "hide",
			CSS:      "display:none !important;",
		})
	}
	if rules.BlockVideo {
		out = append(out, FilterRule{
			Name:     "remove-video",
			Selector: "video, source[type^='video']",
			Action:   "remove",
		})
	}
	if rules.BlockFonts {
		out = append(out, FilterRule{
			Name:   "system-font-fallback",
			Action: "style",
			CSS:    "* { font-family: system-ui, sans-serif !important; }",
		})
	}
	return out
}

// ScriptOverrides returns the script-behavior directives for the active
// tier. The result is deterministic given the tier.
func (e *Engine) ScriptOverrides() []ScriptOverride {
	rules := e.Rules()

	var out []ScriptOverride
	if rules.DeferScripts {
		out = append(out, ScriptOverride{
			Name:   "defer-scripts",
			Script: `document.querySelectorAll("script[src]").forEach(s => s.defer = true);`,
		})
	}
	if rules.BlockAnimations {
		out = append(out, ScriptOverride{
			Name:   "instant-scroll",
			Script: `document.documentElement.style.scrollBehavior = "auto";`,
		})
	}
	if rules.CompressPages {
		out = append(out, ScriptOverride{
			Name:   "lazy-load-media",
			Script: `document.querySelectorAll("img, iframe").forEach(n => n.loading = "lazy");`,
		})
	}
	return out
}
