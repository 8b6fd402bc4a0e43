// Package instantnav implements client-side resource caching and eviction
// for a navigable document viewer: a rendered-page cache, a raw sub-resource
// cache, a speculative prerender pool, back/forward navigation history, and
// a compressed snapshot store for deactivated tabs.
package instantnav

import "time"

// ResourceType classifies a sub-resource request for blocking decisions.
type ResourceType string

const (
	ResourceDocument   ResourceType = "document"
	ResourceImage      ResourceType = "image"
	ResourceVideo      ResourceType = "video"
	ResourceScript     ResourceType = "script"
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceFont       ResourceType = "font"
	ResourceXHR        ResourceType = "xhr"
	ResourceOther      ResourceType = "other"
)

// CachedPage is a fully rendered page held by the page cache.
// Size is the HTML byte length plus the sum of all resource byte lengths.
type CachedPage struct {
	URL       string
	HTML      []byte
	Resources map[string][]byte
	Size      int64
	CachedAt  time.Time
}

// CachedResource is a raw sub-resource (image, stylesheet, script) held by
// the resource cache.
type CachedResource struct {
	URL  string
	Data []byte
}

// PrerenderSlot is an in-flight speculative navigation. Once the shell
// completes the fetch it marks the slot ready; promotion moves the slot's
// content into the page cache.
type PrerenderSlot struct {
	URL       string
	StartedAt time.Time
	Ready     bool
	HTML      []byte
	Resources map[string][]byte
}

// TabSnapshot is the serializable working set of a tab, captured on
// deactivation and compressed until the tab is reactivated.
type TabSnapshot struct {
	TabID     string            `json:"tab_id"`
	URL       string            `json:"url"`
	Title     string            `json:"title,omitempty"`
	HTML      []byte            `json:"html"`
	Resources map[string][]byte `json:"resources,omitempty"`
	ScrollY   int               `json:"scroll_y,omitempty"`
	History   []string          `json:"history,omitempty"`
}

// PageSize returns the cache-accounting size of a page: the HTML byte length
// plus the sum of all resource byte lengths.
func PageSize(html []byte, resources map[string][]byte) int64 {
	size := int64(len(html))
	for _, data := range resources {
		size += int64(len(data))
	}
	return size
}
