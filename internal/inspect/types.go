package inspect

import (
	"encoding/json"
	"time"
)

// Result is the aggregate report for one normalized URL. Every facet is
// optional; a nil facet means it was not observed.
type Result struct {
	URL             string           `json:"url"`
	HTML            string           `json:"html,omitempty"`
	Overview        *Overview        `json:"overview,omitempty"`
	Metadata        *Metadata        `json:"metadata,omitempty"`
	Discoverability *Discoverability `json:"discoverability,omitempty"`
	Resources       *Resources       `json:"resources,omitempty"`
	Networking      *Networking      `json:"networking,omitempty"`
	Performance     *Performance     `json:"performance,omitempty"`
	DataFeeds       *DataFeeds       `json:"dataFeeds,omitempty"`
	DNS             *DNS             `json:"dns,omitempty"`
	Certificate     *Certificate     `json:"certificate,omitempty"`
	FetchedAt       time.Time        `json:"fetchedAt"`
}

// WithoutHTML returns a shallow copy with the raw markup dropped.
func (r Result) WithoutHTML() Result {
	r.HTML = ""
	return r
}

// Overview holds basic document metadata.
type Overview struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Favicon     string `json:"favicon,omitempty"`
	Language    string `json:"language,omitempty"`
	Charset     string `json:"charset,omitempty"`
}

// Metadata holds semantic markup. Map fields are nil when nothing matched;
// list fields are empty but non-nil.
type Metadata struct {
	OpenGraph   map[string]string `json:"openGraph,omitempty"`
	TwitterCard map[string]string `json:"twitterCard,omitempty"`
	JSONLD      []json.RawMessage `json:"jsonLd"`
	MetaTags    []MetaTag         `json:"metaTags"`
}

// MetaTag is one meta element carrying a name or property and a content.
type MetaTag struct {
	Name     string `json:"name,omitempty"`
	Property string `json:"property,omitempty"`
	Content  string `json:"content"`
}

// Discoverability describes how crawlers and readers find the resource.
type Discoverability struct {
	Robots           string            `json:"robots,omitempty"`
	Canonical        string            `json:"canonical,omitempty"`
	Alternates       []Alternate       `json:"alternates"`
	Sitemap          string            `json:"sitemap,omitempty"`
	RobotsTxt        string            `json:"robotsTxt,omitempty"`
	DeclaredSitemaps []string          `json:"declaredSitemaps,omitempty"`
	RSS              string            `json:"rss,omitempty"`
	Atom             string            `json:"atom,omitempty"`
	WellKnown        map[string]string `json:"wellKnown,omitempty"`
}

// Alternate is a link[rel=alternate] entry.
type Alternate struct {
	Href     string `json:"href"`
	Hreflang string `json:"hreflang,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Resources lists the assets referenced by the document, uncapped.
type Resources struct {
	Stylesheets []Stylesheet `json:"stylesheets"`
	Scripts     []Script     `json:"scripts"`
	Images      []Image      `json:"images"`
	Links       []Link       `json:"links"`
}

// Stylesheet is a link[rel=stylesheet] entry.
type Stylesheet struct {
	Href  string `json:"href"`
	Media string `json:"media,omitempty"`
}

// Script is a script[src] entry.
type Script struct {
	Src   string `json:"src"`
	Async bool   `json:"async"`
	Defer bool   `json:"defer"`
	Type  string `json:"type,omitempty"`
}

// Image is an img[src] entry.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt,omitempty"`
}

// Link is any other link[rel] entry.
type Link struct {
	Href string `json:"href"`
	Rel  string `json:"rel,omitempty"`
}

// Networking captures response characteristics of the primary probe.
type Networking struct {
	StatusCode int               `json:"statusCode"`
	FinalURL   string            `json:"finalUrl,omitempty"`
	Server     string            `json:"server,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Redirects  []Redirect        `json:"redirects,omitempty"`
}

// Redirect is one hop followed by the primary probe.
type Redirect struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Status int    `json:"status"`
}

// Performance captures timing and size of the primary probe.
type Performance struct {
	LoadTime time.Duration `json:"loadTime"`
	PageSize int           `json:"pageSize"`
}

// DataFeeds groups feed links found in the document.
type DataFeeds struct {
	RSS  []Feed `json:"rss"`
	Atom []Feed `json:"atom"`
	JSON []Feed `json:"json"`
}

// Feed is one advertised feed.
type Feed struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// DNS holds resolved records for the host.
type DNS struct {
	A     []string `json:"aRecords"`
	AAAA  []string `json:"aaaaRecords"`
	CNAME string   `json:"cnameRecord,omitempty"`
	MX    []MX     `json:"mxRecords"`
	TXT   []string `json:"txtRecords"`
	NS    []string `json:"nsRecords"`
}

// MX is a mail exchange record.
type MX struct {
	Priority uint16 `json:"priority"`
	Exchange string `json:"exchange"`
}

// Certificate summarizes the leaf TLS certificate presented by the host.
type Certificate struct {
	Subject         string    `json:"subject"`
	Issuer          string    `json:"issuer"`
	ValidFrom       time.Time `json:"validFrom"`
	ValidTo         time.Time `json:"validTo"`
	DaysUntilExpiry int       `json:"daysUntilExpiry"`
	Chain           []string  `json:"chain,omitempty"`
}

// CacheEntry wraps a stored Result with its write and last-read times.
type CacheEntry struct {
	Key            string    `json:"key"`
	Result         Result    `json:"result"`
	StoredAt       time.Time `json:"storedAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
}

// ProbeOutcome is the transient result of one successful probe.
type ProbeOutcome struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Elapsed    time.Duration
	Redirects  []Redirect
}

// Reachable reports whether the probe ended on a 2xx response.
func (p ProbeOutcome) Reachable() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// AuxiliaryProbe names a well-known path checked next to the primary probe.
type AuxiliaryProbe struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"`
}

// Auxiliary probe names with dedicated Discoverability fields.
const (
	ProbeSitemap = "sitemap"
	ProbeRobots  = "robots"
)
