package prefetch

import (
	"math"
	"strings"
	"time"
	"unicode"
)

// Mode selects how aggressively links are prefetched.
type Mode string

const (
	ModeHover           Mode = "hover"
	ModePointerDown     Mode = "pointerdown"
	ModePointerDownOnly Mode = "pointerdown-only"
	ModeViewportSmall   Mode = "viewport-small"
	ModeViewportAll     Mode = "viewport-all"
)

// DefaultDelay is the hover delay used when the document does not set one.
const DefaultDelay = 55 * time.Millisecond

// viewportAreaLimit admits the largest phones and excludes small tablets.
// Largest phone: 414 × 896 = 370944; 7" tablet: 600 × 1024 = 614400. The
// viewport is smaller than the screen because of the browser chrome.
const viewportAreaLimit = 450000

// PointerDown reports whether the mode triggers on pointer-down instead of hover.
func (m Mode) PointerDown() bool {
	return m == ModePointerDown || m == ModePointerDownOnly
}

// Viewport reports whether the mode prefetches visible links.
func (m Mode) Viewport() bool {
	return m == ModeViewportSmall || m == ModeViewportAll
}

// Config is the immutable configuration of one Engine.
type Config struct {
	Delay               time.Duration
	Mode                Mode
	AllowQueryString    bool
	AllowExternalLinks  bool
	UseWhitelist        bool
	PointerDownShortcut bool
}

// DefaultConfig returns the configuration of a document without any flags.
func DefaultConfig() Config {
	return Config{
		Delay: DefaultDelay,
		Mode:  ModeHover,
	}
}

// Flags is the raw configuration read from the document. Boolean flags are
// presence markers; Intensity is nil when the document does not set one.
type Flags struct {
	Intensity           *string
	AllowQueryString    bool
	AllowExternalLinks  bool
	UseWhitelist        bool
	PointerDownShortcut bool
}

// Resolve turns discovered document flags into a Config.
func Resolve(flags Flags) Config {
	cfg := DefaultConfig()
	cfg.AllowQueryString = flags.AllowQueryString
	cfg.AllowExternalLinks = flags.AllowExternalLinks
	cfg.UseWhitelist = flags.UseWhitelist
	cfg.PointerDownShortcut = flags.PointerDownShortcut

	if flags.Intensity == nil {
		return cfg
	}
	intensity := *flags.Intensity

	switch {
	case strings.HasPrefix(intensity, "mousedown"), strings.HasPrefix(intensity, "pointerdown"):
		cfg.Mode = ModePointerDown
		if intensity == "mousedown-only" || intensity == "pointerdown-only" {
			cfg.Mode = ModePointerDownOnly
		}
	case strings.HasPrefix(intensity, "viewport"):
		switch intensity {
		case "viewport", "viewport-small":
			cfg.Mode = ModeViewportSmall
		case "viewport-all":
			cfg.Mode = ModeViewportAll
		}
	default:
		if ms, ok := parseLeadingInt(intensity); ok {
			if ms < 0 {
				ms = 0
			}
			cfg.Delay = time.Duration(ms) * time.Millisecond
		}
	}

	return cfg
}

// Plan lists the listeners an Engine attaches.
type Plan struct {
	Touch       bool `json:"touch"`
	Hover       bool `json:"hover"`
	PointerDown bool `json:"pointerdown"`
	Shortcut    bool `json:"shortcut"`
	Viewport    bool `json:"viewport"`
}

// Inert reports whether no listener is attached.
func (p Plan) Inert() bool {
	return p == Plan{}
}

// Plan derives the listener set for the given host environment.
func (c Config) Plan(env Environment) Plan {
	if !env.Supported() {
		return Plan{}
	}

	plan := Plan{
		Touch:       c.Mode != ModePointerDownOnly,
		Hover:       !c.Mode.PointerDown(),
		PointerDown: c.Mode.PointerDown() && !c.PointerDownShortcut,
		Shortcut:    c.PointerDownShortcut,
	}

	if c.Mode.Viewport() && !env.Network.Constrained() {
		switch c.Mode {
		case ModeViewportAll:
			plan.Viewport = true
		case ModeViewportSmall:
			plan.Viewport = env.Width*env.Height < viewportAreaLimit
		}
	}

	return plan
}

// parseLeadingInt parses the integer prefix of s the way page scripts do:
// leading whitespace, an optional sign, then decimal digits or a 0x-prefixed
// hex number. Anything after the digits is ignored.
func parseLeadingInt(s string) (int64, bool) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	negative := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}

	base := int64(10)
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		s = s[2:]
	}

	var n int64
	digits := 0
	for _, r := range s {
		d := digitValue(r)
		if d < 0 || d >= base {
			break
		}
		if n > (math.MaxInt32-d)/base {
			n = math.MaxInt32
		} else {
			n = n*base + d
		}
		digits++
	}

	if digits == 0 {
		return 0, false
	}
	if negative {
		n = -n
	}
	return n, true
}

func digitValue(r rune) int64 {
	switch {
	case r >= '0' && r <= '9':
		return int64(r - '0')
	case r >= 'a' && r <= 'f':
		return int64(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int64(r-'A') + 10
	default:
		return -1
	}
}
