package turbo

import (
	"net/url"
	"strings"
)

// Category is a domain classification used by tier rules.
type Category string

const (
	CategoryAd        Category = "ad"
	CategoryTracker   Category = "tracker"
	CategoryAnalytics Category = "analytics"
	CategorySocial    Category = "social"
)

// categoryDomains maps each category to its known domain list. Matching is
// by exact host or any subdomain.
var categoryDomains = map[Category][]string{
	CategoryAd: {
		"doubleclick.net",
		"googlesyndication.com",
		"googleadservices.com",
		"adnxs.com",
		"amazon-adsystem.com",
		"criteo.com",
		"taboola.com",
		"outbrain.com",
		"adsrvr.org",
		"pubmatic.com",
		"rubiconproject.com",
		"moatads.com",
	},
	CategoryTracker: {
		"scorecardresearch.com",
		"quantserve.com",
		"hotjar.com",
		"mouseflow.com",
		"crazyegg.com",
		"fullstory.com",
		"branch.io",
		"appsflyer.com",
		"bluekai.com",
		"krxd.net",
	},
	CategoryAnalytics: {
		"google-analytics.com",
		"googletagmanager.com",
		"mixpanel.com",
		"segment.com",
		"segment.io",
		"amplitude.com",
		"heapanalytics.com",
		"newrelic.com",
		"nr-data.net",
	},
	CategorySocial: {
		"facebook.net",
		"fbcdn.net",
		"platform.twitter.com",
		"syndication.twitter.com",
		"platform.linkedin.com",
		"widgets.pinterest.com",
		"disqus.com",
		"addthis.com",
		"sharethis.com",
	},
}

// hostOf extracts the hostname from a url. Bare hosts without a scheme are
// returned as-is so callers can pass either form.
func hostOf(rawurl string) string {
	u, err := url.Parse(rawurl)
	if err == nil && u.Host != "" {
		return strings.ToLower(u.Hostname())
	}
	// Bare host, possibly with a path: "ads.example.com/banner.js"
	host := rawurl
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// matchesDomain reports whether host equals domain or is a subdomain of it.
func matchesDomain(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// matchesAny reports whether host matches any domain in the set.
func matchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if matchesDomain(host, d) {
			return true
		}
	}
	return false
}
