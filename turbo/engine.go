package turbo

import (
	"log/slog"
	"sync"

	instantnav "github.com/wolfeidau/instant-nav"
	"github.com/wolfeidau/instant-nav/telemetry"
)

// BlockReason records why a request was blocked, for observability.
type BlockReason string

const (
	ReasonAd        BlockReason = "ad"
	ReasonTracker   BlockReason = "tracker"
	ReasonAnalytics BlockReason = "analytics"
	ReasonSocial    BlockReason = "social"
	ReasonImage     BlockReason = "image"
	ReasonVideo     BlockReason = "video"
	ReasonFont      BlockReason = "font"
	ReasonCustom    BlockReason = "custom"
)

// Config holds engine configuration.
type Config struct {
	// Tier is the initial blocking tier. Default: TierOff.
	Tier Tier

	// Logger for tier changes.
	Logger *slog.Logger
}

// Engine decides whether a resource request should be blocked. The active
// rule set is derived from the current tier; the custom block and whitelist
// sets survive tier changes.
type Engine struct {
	mu        sync.RWMutex
	tier      Tier
	rules     RuleSet
	custom    map[string]struct{}
	whitelist map[string]struct{}
	blocks    map[BlockReason]uint64
	logger    *slog.Logger
}

// BlockStats is a snapshot of per-reason block counters.
type BlockStats struct {
	Total     uint64                 `json:"total"`
	ByReason  map[BlockReason]uint64 `json:"by_reason"`
	Tier      string                 `json:"tier"`
	Custom    int                    `json:"custom_rules"`
	Whitelist int                    `json:"whitelist_rules"`
}

// NewEngine creates an engine at the configured tier.
func NewEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		tier:      cfg.Tier,
		rules:     cfg.Tier.Rules(),
		custom:    make(map[string]struct{}),
		whitelist: make(map[string]struct{}),
		blocks:    make(map[BlockReason]uint64),
		logger:    cfg.Logger,
	}
}

// SetTier replaces the active rule set wholesale. Custom block and
// whitelist entries are preserved.
func (e *Engine) SetTier(tier Tier) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tier = tier
	e.rules = tier.Rules()
	e.logger.Info("blocking tier changed", "tier", tier.String())
}

// Tier returns the current tier.
func (e *Engine) Tier() Tier {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tier
}

// Rules returns the active rule set.
func (e *Engine) Rules() RuleSet {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rules
}

// ShouldBlock decides whether the request for rawurl should be blocked.
// Evaluation order, first match wins: whitelist allows, custom block list
// blocks, resource-type rules block, then domain-category rules in
// ad, tracker, analytics, social priority order.
func (e *Engine) ShouldBlock(rawurl string, rtype instantnav.ResourceType) bool {
	host := hostOf(rawurl)

	e.mu.Lock()
	defer e.mu.Unlock()

	for domain := range e.whitelist {
		if matchesDomain(host, domain) {
			return false
		}
	}

	for domain := range e.custom {
		if matchesDomain(host, domain) {
			e.recordBlockLocked(ReasonCustom)
			return true
		}
	}

	switch rtype {
	case instantnav.ResourceImage:
		if e.rules.BlockImages {
			e.recordBlockLocked(ReasonImage)
			return true
		}
	case instantnav.ResourceVideo:
		if e.rules.BlockVideo {
			e.recordBlockLocked(ReasonVideo)
			return true
		}
	case instantnav.ResourceFont:
		if e.rules.BlockFonts {
			e.recordBlockLocked(ReasonFont)
			return true
		}
	}

	if e.rules.BlockAds && matchesAny(host, categoryDomains[CategoryAd]) {
		e.recordBlockLocked(ReasonAd)
		return true
	}
	if e.rules.BlockTrackers && matchesAny(host, categoryDomains[CategoryTracker]) {
		e.recordBlockLocked(ReasonTracker)
		return true
	}
	if e.rules.BlockAnalytics && matchesAny(host, categoryDomains[CategoryAnalytics]) {
		e.recordBlockLocked(ReasonAnalytics)
		return true
	}
	if e.rules.BlockSocial && matchesAny(host, categoryDomains[CategorySocial]) {
		e.recordBlockLocked(ReasonSocial)
		return true
	}

	return false
}

// AddCustomBlock adds a domain to the persistent custom block list.
func (e *Engine) AddCustomBlock(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.custom[hostOf(domain)] = struct{}{}
}

// RemoveCustomBlock removes a domain from the custom block list.
func (e *Engine) RemoveCustomBlock(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.custom, hostOf(domain))
}

// AddToWhitelist adds a domain to the persistent whitelist. Whitelisted
// domains are never blocked, regardless of tier or custom rules.
func (e *Engine) AddToWhitelist(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.whitelist[hostOf(domain)] = struct{}{}
}

// RemoveFromWhitelist removes a domain from the whitelist.
func (e *Engine) RemoveFromWhitelist(domain string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.whitelist, hostOf(domain))
}

// Stats returns a snapshot of block counters.
func (e *Engine) Stats() BlockStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := BlockStats{
		ByReason:  make(map[BlockReason]uint64, len(e.blocks)),
		Tier:      e.tier.String(),
		Custom:    len(e.custom),
		Whitelist: len(e.whitelist),
	}
	for reason, n := range e.blocks {
		st.ByReason[reason] = n
		st.Total += n
	}
	return st
}

// recordBlockLocked increments the per-reason counter. Caller must hold e.mu.
func (e *Engine) recordBlockLocked(reason BlockReason) {
	e.blocks[reason]++
	telemetry.RecordBlock(string(reason))
}
