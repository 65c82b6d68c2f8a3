package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/prefetch"
	"github.com/GriffinCanCode/CacheOnHover/tests/helpers/testutil"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title> Sample </title></head>
<body data-coh-intensity="150" data-coh-allow-query-string>
  <nav>
    <a id="home" href="/">Home</a>
    <a id="about" href="about"><span id="label">About</span></a>
    <a id="ext" href="https://other.com/x" data-coh>Other</a>
    <a id="skip" href="/skip" data-no-coh>Skip</a>
    <a id="bare">No href</a>
  </nav>
  <p id="text">Plain</p>
</body>
</html>`

func parseSample(t *testing.T, page string) *Document {
	t.Helper()
	doc, err := ParseDocument(strings.NewReader(page), testutil.MustParseURL(t, "https://example.com/docs/index.html"))
	require.NoError(t, err)
	return doc
}

func refOf(t *testing.T, doc *Document, id string) string {
	t.Helper()
	ref, ok := doc.dom.Find("#" + id).Attr(AttrRef)
	require.True(t, ok, "element %s has a reference", id)
	return ref
}

func TestParseDocument(t *testing.T) {
	doc := parseSample(t, samplePage)

	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, "Sample", doc.Title)
	assert.Len(t, doc.Links(), 5)

	refs := map[string]bool{}
	for _, n := range doc.elements {
		ref := doc.dom.FindNodes(n).AttrOr(AttrRef, "")
		assert.False(t, refs[ref], "references are unique")
		refs[ref] = true
	}
}

func TestDocumentFlags(t *testing.T) {
	doc := parseSample(t, samplePage)
	flags := doc.Flags()

	require.NotNil(t, flags.Intensity)
	assert.Equal(t, "150", *flags.Intensity)
	assert.True(t, flags.AllowQueryString)
	assert.False(t, flags.AllowExternalLinks)
	assert.False(t, flags.UseWhitelist)
	assert.False(t, flags.PointerDownShortcut)

	cfg := prefetch.Resolve(flags)
	assert.Equal(t, prefetch.ModeHover, cfg.Mode)
	assert.Equal(t, int64(150), cfg.Delay.Milliseconds())
}

func TestAnchors(t *testing.T) {
	doc := parseSample(t, samplePage)

	tests := []struct {
		id         string
		url        string
		opted      bool
		suppressed bool
	}{
		{id: "home", url: "https://example.com/"},
		{id: "about", url: "https://example.com/docs/about"},
		{id: "ext", url: "https://other.com/x", opted: true},
		{id: "skip", url: "https://example.com/skip", suppressed: true},
		{id: "bare"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			a, ok := doc.Anchor(refOf(t, doc, tt.id))
			require.True(t, ok)
			if tt.url == "" {
				assert.Nil(t, a.URL())
			} else {
				assert.Equal(t, tt.url, a.URL().String())
			}
			assert.Equal(t, tt.opted, a.Opted())
			assert.Equal(t, tt.suppressed, a.Suppressed())
		})
	}
}

func TestAnchorURLsAreCanonical(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`<html><body>
  <a id="a" href="/a">a</a>
  <a id="upper" href="https://EXAMPLE.com:443/a">upper</a>
  <a id="root" href="https://example.com">root</a>
  <a id="slash" href="/">slash</a>
  <a id="http" href="http://Example.com:80">http</a>
  <a id="port" href="https://example.com:8443">port</a>
  <a id="mail" href="mailto:someone@example.com">mail</a>
</body></html>`), testutil.MustParseURL(t, "https://example.com/"))
	require.NoError(t, err)

	tests := map[string]string{
		"a":     "https://example.com/a",
		"upper": "https://example.com/a",
		"root":  "https://example.com/",
		"slash": "https://example.com/",
		"http":  "http://example.com/",
		"port":  "https://example.com:8443/",
		"mail":  "mailto:someone@example.com",
	}
	for id, want := range tests {
		a, ok := doc.Anchor(refOf(t, doc, id))
		require.True(t, ok)
		assert.Equal(t, want, a.URL().String(), id)
	}
}

func TestEquivalentHrefsPrefetchOnce(t *testing.T) {
	doc, err := ParseDocument(strings.NewReader(`<html><body>
  <a id="a" href="/a">a</a>
  <a id="upper" href="https://EXAMPLE.com:443/a">upper</a>
  <a id="root" href="https://example.com">root</a>
  <a id="slash" href="/">slash</a>
</body></html>`), testutil.MustParseURL(t, "https://example.com/"))
	require.NoError(t, err)

	sink := &testutil.RecordingSink{}
	engine := prefetch.New(prefetch.DefaultConfig(), doc.URL, desktop, sink, prefetch.Options{})
	for _, id := range []string{"a", "upper", "root", "slash"} {
		engine.TouchStart(prefetch.TouchEvent{Target: doc.Target(refOf(t, doc, id))})
	}

	assert.Equal(t, []string{"https://example.com/a", "https://example.com/"}, sink.URLs())
}

func TestBaseHref(t *testing.T) {
	doc := parseSample(t, `<html><head><base href="https://cdn.example.com/v2/"></head><body><a id="l" href="page">x</a></body></html>`)
	a, ok := doc.Anchor(refOf(t, doc, "l"))
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/v2/page", a.URL().String())
}

func TestClosestLink(t *testing.T) {
	doc := parseSample(t, samplePage)

	link := doc.Target(refOf(t, doc, "label")).ClosestLink()
	require.NotNil(t, link)
	assert.Equal(t, "https://example.com/docs/about", link.URL().String())

	about, _ := doc.Anchor(refOf(t, doc, "about"))
	assert.Same(t, about, link.(*Anchor), "links keep their identity")

	assert.Nil(t, doc.Target(refOf(t, doc, "text")).ClosestLink())
	assert.Nil(t, doc.Target("missing"))
}

func TestPrefetchHints(t *testing.T) {
	doc := parseSample(t, samplePage)
	assert.Empty(t, doc.PrefetchHints())

	doc.AddPrefetchHint("https://example.com/")
	doc.AddPrefetchHint("https://example.com/docs/about")

	assert.Equal(t, []string{"https://example.com/", "https://example.com/docs/about"}, doc.PrefetchHints())

	rendered, err := doc.HTML()
	require.NoError(t, err)
	assert.Contains(t, rendered, `<link rel="prefetch" href="https://example.com/docs/about"`)
}
