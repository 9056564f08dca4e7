// Package extract turns raw markup into the typed facets of an inspection
// report. Extraction is pure: no I/O, same input, same output.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sitedigger/internal/inspect"
)

// Feed MIME types recognised on link[rel=alternate].
const (
	TypeRSS      = "application/rss+xml"
	TypeAtom     = "application/atom+xml"
	TypeJSONFeed = "application/feed+json"
	TypeJSON     = "application/json"
)

// Facets is everything that can be derived from markup alone.
type Facets struct {
	Overview        *inspect.Overview
	Metadata        *inspect.Metadata
	Discoverability *inspect.Discoverability
	Resources       *inspect.Resources
	DataFeeds       *inspect.DataFeeds
	// SkippedJSONLD counts ld+json blocks dropped because they did not parse.
	SkippedJSONLD int
}

// Extract parses rawHTML and returns its facets.
func Extract(rawHTML string) (Facets, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Facets{}, fmt.Errorf("parse html: %w", err)
	}
	return FromDocument(doc), nil
}

// FromDocument extracts facets from an already parsed document.
func FromDocument(doc *goquery.Document) Facets {
	metadata, skipped := extractMetadata(doc)
	return Facets{
		Overview:        extractOverview(doc),
		Metadata:        metadata,
		Discoverability: extractDiscoverability(doc),
		Resources:       extractResources(doc),
		DataFeeds:       extractFeeds(doc),
		SkippedJSONLD:   skipped,
	}
}

func extractOverview(doc *goquery.Document) *inspect.Overview {
	ov := inspect.Overview{
		Title:       strings.TrimSpace(doc.Find("title").First().Text()),
		Description: metaContent(doc, "description"),
		Favicon:     favicon(doc),
		Language:    attr(doc.Find("html").First(), "lang"),
		Charset:     attr(doc.Find("meta[charset]").First(), "charset"),
	}
	if ov == (inspect.Overview{}) {
		return nil
	}
	return &ov
}

func favicon(doc *goquery.Document) string {
	for _, rel := range []string{"icon", "shortcut icon", "apple-touch-icon"} {
		if href := linkHref(doc, rel); href != "" {
			return href
		}
	}
	return ""
}

func extractMetadata(doc *goquery.Document) (*inspect.Metadata, int) {
	md := inspect.Metadata{
		OpenGraph:   prefixedMeta(doc, "property", "og:"),
		TwitterCard: prefixedMeta(doc, "name", "twitter:"),
		JSONLD:      []json.RawMessage{},
		MetaTags:    []inspect.MetaTag{},
	}

	skipped := 0
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		body := strings.TrimSpace(s.Text())
		if body == "" {
			return
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(body)); err != nil {
			skipped++
			return
		}
		md.JSONLD = append(md.JSONLD, json.RawMessage(buf.Bytes()))
	})

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, property, content := attr(s, "name"), attr(s, "property"), attr(s, "content")
		if (name == "" && property == "") || content == "" {
			return
		}
		md.MetaTags = append(md.MetaTags, inspect.MetaTag{Name: name, Property: property, Content: content})
	})

	if md.OpenGraph == nil && md.TwitterCard == nil && len(md.JSONLD) == 0 && len(md.MetaTags) == 0 {
		return nil, skipped
	}
	return &md, skipped
}

// prefixedMeta collects meta[attrName^=prefix] into a map; later duplicates win.
func prefixedMeta(doc *goquery.Document, attrName, prefix string) map[string]string {
	var out map[string]string
	doc.Find(fmt.Sprintf(`meta[%s^="%s"]`, attrName, prefix)).Each(func(_ int, s *goquery.Selection) {
		key, content := attr(s, attrName), attr(s, "content")
		if key == "" || content == "" {
			return
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[key] = content
	})
	return out
}

func extractDiscoverability(doc *goquery.Document) *inspect.Discoverability {
	d := inspect.Discoverability{
		Robots:     metaContent(doc, "robots"),
		Canonical:  linkHref(doc, "canonical"),
		Alternates: []inspect.Alternate{},
		RSS:        linkHref(doc, "alternate", TypeRSS),
		Atom:       linkHref(doc, "alternate", TypeAtom),
	}
	doc.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		href := attr(s, "href")
		if href == "" {
			return
		}
		d.Alternates = append(d.Alternates, inspect.Alternate{
			Href:     href,
			Hreflang: attr(s, "hreflang"),
			Type:     attr(s, "type"),
		})
	})
	if d.Robots == "" && d.Canonical == "" && d.RSS == "" && d.Atom == "" && len(d.Alternates) == 0 {
		return nil
	}
	return &d
}

func extractResources(doc *goquery.Document) *inspect.Resources {
	r := inspect.Resources{
		Stylesheets: []inspect.Stylesheet{},
		Scripts:     []inspect.Script{},
		Images:      []inspect.Image{},
		Links:       []inspect.Link{},
	}
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		if href := attr(s, "href"); href != "" {
			r.Stylesheets = append(r.Stylesheets, inspect.Stylesheet{Href: href, Media: attr(s, "media")})
		}
	})
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src := attr(s, "src")
		if src == "" {
			return
		}
		_, async := s.Attr("async")
		_, deferred := s.Attr("defer")
		r.Scripts = append(r.Scripts, inspect.Script{Src: src, Async: async, Defer: deferred, Type: attr(s, "type")})
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src := attr(s, "src"); src != "" {
			r.Images = append(r.Images, inspect.Image{Src: src, Alt: attr(s, "alt")})
		}
	})
	doc.Find(`link[rel]:not([rel="stylesheet"]):not([rel="alternate"])`).Each(func(_ int, s *goquery.Selection) {
		if href := attr(s, "href"); href != "" {
			r.Links = append(r.Links, inspect.Link{Href: href, Rel: attr(s, "rel")})
		}
	})
	if len(r.Stylesheets) == 0 && len(r.Scripts) == 0 && len(r.Images) == 0 && len(r.Links) == 0 {
		return nil
	}
	return &r
}

func extractFeeds(doc *goquery.Document) *inspect.DataFeeds {
	f := inspect.DataFeeds{RSS: []inspect.Feed{}, Atom: []inspect.Feed{}, JSON: []inspect.Feed{}}
	doc.Find(`link[rel="alternate"][type]`).Each(func(_ int, s *goquery.Selection) {
		href := attr(s, "href")
		if href == "" {
			return
		}
		feed := inspect.Feed{URL: href, Title: attr(s, "title")}
		switch mediaType(attr(s, "type")) {
		case TypeRSS:
			f.RSS = append(f.RSS, feed)
		case TypeAtom:
			f.Atom = append(f.Atom, feed)
		case TypeJSONFeed, TypeJSON:
			f.JSON = append(f.JSON, feed)
		}
	})
	if len(f.RSS) == 0 && len(f.Atom) == 0 && len(f.JSON) == 0 {
		return nil
	}
	return &f
}

func metaContent(doc *goquery.Document, name string) string {
	return attr(doc.Find(fmt.Sprintf(`meta[name="%s"]`, name)).First(), "content")
}

// linkHref returns the href of the first link with the given rel, optionally
// restricted to the given type values.
func linkHref(doc *goquery.Document, rel string, types ...string) string {
	var href string
	doc.Find(fmt.Sprintf(`link[rel="%s"]`, rel)).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(types) > 0 && !containsType(types, attr(s, "type")) {
			return true
		}
		href = attr(s, "href")
		return false
	})
	return href
}

func containsType(types []string, got string) bool {
	got = mediaType(got)
	for _, t := range types {
		if t == got {
			return true
		}
	}
	return false
}

func mediaType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return v
}
