package turbo

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	instantnav "github.com/wolfeidau/instant-nav"
)

// ResourceRef is a sub-resource reference extracted from a page, paired
// with its inferred type so the shell can consult ShouldBlock per request.
type ResourceRef struct {
	URL  string
	Type instantnav.ResourceType
}

// ExtractResourceRefs parses page HTML and returns the sub-resource
// references it would trigger, in document order. Duplicate urls are
// collapsed to the first occurrence.
func ExtractResourceRefs(page []byte) ([]ResourceRef, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("turbo: parsing page: %w", err)
	}

	var refs []ResourceRef
	seen := make(map[string]struct{})

	add := func(rawurl string, rtype instantnav.ResourceType) {
		if rawurl == "" {
			return
		}
		if _, ok := seen[rawurl]; ok {
			return
		}
		seen[rawurl] = struct{}{}
		refs = append(refs, ResourceRef{URL: rawurl, Type: rtype})
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "img":
				add(attrValue(n, "src"), instantnav.ResourceImage)
			case "script":
				add(attrValue(n, "src"), instantnav.ResourceScript)
			case "video":
				add(attrValue(n, "src"), instantnav.ResourceVideo)
			case "source":
				rtype := instantnav.ResourceVideo
				if !strings.HasPrefix(attrValue(n, "type"), "video") {
					rtype = instantnav.ResourceOther
				}
				add(attrValue(n, "src"), rtype)
			case "link":
				rel := strings.ToLower(attrValue(n, "rel"))
				href := attrValue(n, "href")
				switch {
				case rel == "stylesheet":
					add(href, instantnav.ResourceStylesheet)
				case rel == "preload" && strings.EqualFold(attrValue(n, "as"), "font"):
					add(href, instantnav.ResourceFont)
				case rel == "preload" && strings.EqualFold(attrValue(n, "as"), "image"):
					add(href, instantnav.ResourceImage)
				}
			case "iframe":
				add(attrValue(n, "src"), instantnav.ResourceOther)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return refs, nil
}

// attrValue returns the value of the named attribute, or "".
func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}
