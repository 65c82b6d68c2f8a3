package browser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/CacheOnHover/internal/domain/tabgate"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/CacheOnHover/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/CacheOnHover/internal/providers/http/client"
)

var (
	// ErrNotHTML is returned when a loaded resource is not an HTML document.
	ErrNotHTML = errors.New("resource is not an HTML document")
	// ErrTabInactive is returned when the gate cancels a tab's document load.
	ErrTabInactive = errors.New("tab is not active")
)

// chardetMinConfidence is the confidence above which byte-level detection
// overrides a charset sniffed from meta tags or defaulted.
const chardetMinConfidence = 80

// Gatekeeper decides whether an outbound request may proceed.
type Gatekeeper interface {
	BeforeRequest(details tabgate.RequestDetails) tabgate.BlockingResponse
}

// LoadRecorder observes document loads.
type LoadRecorder interface {
	RecordPageLoad(outcome string, duration time.Duration)
}

// Fetcher performs HTTP GETs.
type Fetcher interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*client.Response, error)
}

// Loader fetches and parses documents on behalf of tabs.
type Loader struct {
	fetcher  Fetcher
	gate     Gatekeeper
	log      *zap.Logger
	recorder LoadRecorder
	tracer   *tracing.Tracer
	now      func() time.Time
}

// LoaderOptions carries the optional collaborators of a Loader.
type LoaderOptions struct {
	Gate     Gatekeeper // nil disables gating
	Logger   *zap.Logger
	Recorder LoadRecorder
	Tracer   *tracing.Tracer // nil disables load spans
}

// NewLoader creates a loader.
func NewLoader(fetcher Fetcher, opts LoaderOptions) *Loader {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Loader{
		fetcher:  fetcher,
		gate:     opts.Gate,
		log:      opts.Logger,
		recorder: opts.Recorder,
		tracer:   opts.Tracer,
		now:      time.Now,
	}
}

// Load fetches rawURL for tab and parses it.
func (l *Loader) Load(ctx context.Context, tab tabgate.TabID, rawURL string) (doc *Document, err error) {
	start := l.now()
	var span *tracing.Span
	if l.tracer != nil {
		span, ctx = l.tracer.StartSpan(ctx, "document.load")
		span.SetTag("url", rawURL)
		span.SetTag("tab_id", tab.String())
	}
	defer func() {
		if l.recorder != nil {
			l.recorder.RecordPageLoad(loadOutcome(err), l.now().Sub(start))
		}
		if span != nil {
			span.SetError(err)
			span.Finish()
			l.tracer.Submit(span)
		}
	}()

	if l.gate != nil {
		verdict := l.gate.BeforeRequest(tabgate.RequestDetails{
			TabID:  tab,
			URL:    rawURL,
			Method: http.MethodGet,
		})
		if verdict.Cancel {
			return nil, fmt.Errorf("load %s: %w", rawURL, ErrTabInactive)
		}
	}

	header := http.Header{}
	tracing.Inject(ctx, header)
	resp, err := l.fetcher.Get(ctx, rawURL, header)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rawURL, err)
	}
	if resp.Status >= http.StatusBadRequest {
		return nil, fmt.Errorf("load %s: HTTP %d", rawURL, resp.Status)
	}

	if !isHTML(resp.Body, resp.ContentType()) {
		return nil, fmt.Errorf("load %s: %w", rawURL, ErrNotHTML)
	}

	body, label := decodeCharset(resp.Body, resp.ContentType())
	doc, err = ParseDocument(bytes.NewReader(body), resp.URL)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rawURL, err)
	}

	l.log.Info("Document loaded",
		zap.Stringer("tab_id", tab),
		zap.String("doc_id", doc.ID),
		zap.Stringer("url", resp.URL),
		zap.String("charset", label),
		zap.Int("links", len(doc.links)),
	)
	return doc, nil
}

// isHTML accepts bodies sniffed as HTML, and plain text served as HTML since
// sniffing needs markup near the start of the body.
func isHTML(body []byte, contentType string) bool {
	detected := mimetype.Detect(body)
	if detected.Is("text/html") || detected.Is("application/xhtml+xml") {
		return true
	}

	media, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if media != "text/html" && media != "application/xhtml+xml" {
		return false
	}
	return detected.Is("text/plain")
}

// decodeCharset converts body to UTF-8. A byte order mark or a charset in the
// Content-Type header is authoritative; otherwise a confident byte-level
// detection wins over meta tag sniffing.
func decodeCharset(body []byte, contentType string) ([]byte, string) {
	_, label, certain := charset.DetermineEncoding(body, contentType)
	if !certain {
		if best, err := chardet.NewHtmlDetector().DetectBest(body); err == nil && best.Confidence >= chardetMinConfidence {
			label = strings.ToLower(best.Charset)
		}
	}

	if label == "utf-8" {
		return body, label
	}

	r, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return body, "utf-8"
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return body, "utf-8"
	}
	return buf.Bytes(), label
}

func loadOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTabInactive):
		return "cancelled"
	case errors.Is(err, ErrNotHTML):
		return "not_html"
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return "breaker_open"
	default:
		return "error"
	}
}
