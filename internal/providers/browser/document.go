package browser

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
)

// Attribute names understood by the host.
const (
	AttrRef                 = "data-coh-ref"
	AttrOptIn               = "data-coh"
	AttrOptOut              = "data-no-coh"
	AttrIntensity           = "data-coh-intensity"
	AttrAllowQueryString    = "data-coh-allow-query-string"
	AttrAllowExternalLinks  = "data-coh-allow-external-links"
	AttrWhitelist           = "data-coh-whitelist"
	AttrMousedownShortcut   = "data-coh-mousedown-shortcut"
	prefetchHintsExpression = "//head/link[@rel='prefetch']"
)

// Document is a parsed page. Every element carries a stable reference in
// AttrRef which the rendering surface uses to name event targets.
type Document struct {
	ID    string
	URL   *url.URL
	Title string

	mu       sync.Mutex
	root     *html.Node
	dom      *goquery.Document
	base     *url.URL
	elements map[string]*html.Node
	anchors  map[*html.Node]*Anchor
	links    []prefetch.Link
}

// ParseDocument parses r as the page at location.
func ParseDocument(r io.Reader, location *url.URL) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	d := &Document{
		ID:       uuid.NewString(),
		URL:      location,
		root:     root,
		dom:      goquery.NewDocumentFromNode(root),
		base:     location,
		elements: make(map[string]*html.Node),
		anchors:  make(map[*html.Node]*Anchor),
	}

	if href, ok := d.dom.Find("base[href]").First().Attr("href"); ok {
		if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
			d.base = location.ResolveReference(ref)
		}
	}

	d.Title = strings.TrimSpace(d.dom.Find("title").First().Text())
	if d.Title == "" {
		d.Title = location.Host
	}

	d.annotate()

	for _, n := range htmlquery.Find(root, "//a") {
		a := d.newAnchor(n)
		d.anchors[n] = a
		d.links = append(d.links, a)
	}

	return d, nil
}

// annotate assigns element references in document order.
func (d *Document) annotate() {
	next := 0
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			ref := "e" + strconv.Itoa(next)
			next++
			setAttr(n, AttrRef, ref)
			d.elements[ref] = n
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
}

// Flags reads configuration discovery attributes from the body element.
func (d *Document) Flags() prefetch.Flags {
	d.mu.Lock()
	defer d.mu.Unlock()

	body := d.dom.Find("body").First()
	var flags prefetch.Flags
	if v, ok := body.Attr(AttrIntensity); ok {
		flags.Intensity = &v
	}
	_, flags.AllowQueryString = body.Attr(AttrAllowQueryString)
	_, flags.AllowExternalLinks = body.Attr(AttrAllowExternalLinks)
	_, flags.UseWhitelist = body.Attr(AttrWhitelist)
	_, flags.PointerDownShortcut = body.Attr(AttrMousedownShortcut)
	return flags
}

// Target returns the element with the given reference. Unknown references
// resolve to nil, the same as an event with no element target.
func (d *Document) Target(ref string) prefetch.Target {
	n, ok := d.elements[ref]
	if !ok {
		return nil
	}
	return &Element{doc: d, node: n}
}

// Anchor returns the link element with the given reference.
func (d *Document) Anchor(ref string) (*Anchor, bool) {
	n, ok := d.elements[ref]
	if !ok {
		return nil, false
	}
	a, ok := d.anchors[n]
	return a, ok
}

// Links returns every link element present at parse time, in document order.
func (d *Document) Links() []prefetch.Link {
	return append([]prefetch.Link(nil), d.links...)
}

// AddPrefetchHint appends a prefetch resource hint to the head.
func (d *Document) AddPrefetchHint(rawURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	head := d.dom.Find("head").First()
	link := &html.Node{
		Type: html.ElementNode,
		Data: "link",
		Attr: []html.Attribute{
			{Key: "rel", Val: "prefetch"},
			{Key: "href", Val: rawURL},
		},
	}
	head.AppendNodes(link)
}

// PrefetchHints lists the hrefs of prefetch hints in the head.
func (d *Document) PrefetchHints() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var hints []string
	for _, n := range htmlquery.Find(d.root, prefetchHintsExpression) {
		hints = append(hints, htmlquery.SelectAttr(n, "href"))
	}
	return hints
}

// HTML renders the current DOM.
func (d *Document) HTML() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dom.Html()
}

func (d *Document) newAnchor(n *html.Node) *Anchor {
	a := &Anchor{node: n, ref: htmlquery.SelectAttr(n, AttrRef)}
	for _, at := range n.Attr {
		switch at.Key {
		case "href":
			if ref, err := url.Parse(strings.TrimSpace(at.Val)); err == nil {
				a.url = canonicalURL(d.base.ResolveReference(ref))
			}
		case AttrOptIn:
			a.opted = true
		case AttrOptOut:
			a.suppressed = true
		}
	}
	return a
}

// canonicalURL serializes u the way a browser reports a link's href for
// http(s): lowercase host, no default port, and "/" for an empty path.
func canonicalURL(u *url.URL) *url.URL {
	if u.Scheme != "http" && u.Scheme != "https" {
		return u
	}
	host := strings.ToLower(u.Host)
	if port := u.Port(); port == "" || port == defaultPorts[u.Scheme] {
		host = strings.TrimSuffix(host, ":"+port)
	}
	u.Host = host
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
	}
	return u
}

var defaultPorts = map[string]string{"http": "80", "https": "443"}

// Anchor is a link element. Its attributes are captured at parse time.
type Anchor struct {
	node       *html.Node
	ref        string
	url        *url.URL
	opted      bool
	suppressed bool
}

func (a *Anchor) URL() *url.URL    { return a.url }
func (a *Anchor) Opted() bool      { return a.opted }
func (a *Anchor) Suppressed() bool { return a.suppressed }

// Ref returns the element reference.
func (a *Anchor) Ref() string { return a.ref }

// Element is any element of a document.
type Element struct {
	doc  *Document
	node *html.Node
}

// ClosestLink implements prefetch.Target.
func (e *Element) ClosestLink() prefetch.Link {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	sel := e.doc.dom.FindNodes(e.node).Closest("a")
	if sel.Length() == 0 {
		return nil
	}
	a, ok := e.doc.anchors[sel.Nodes[0]]
	if !ok {
		return nil
	}
	return a
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
