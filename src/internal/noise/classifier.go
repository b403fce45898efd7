package noise

import (
	"strings"

	"uxtrace/src/internal/core"
)

// Verdict is the classifier's decision for one event.
type Verdict struct {
	Noise  bool
	Reason string
}

// Noise reason tags.
const (
	ReasonCORSPreflight      = "cors_preflight"
	ReasonMovedPermanently   = "moved_permanently"
	ReasonTemporaryRedirect  = "temporary_redirect"
	ReasonPermanentRedirect  = "permanent_redirect"
	ReasonBrowserInitiated   = "browser_initiated"
	ReasonFaviconRequest     = "favicon_request"
	ReasonHealthCheck        = "health_check"
	ReasonLoggingAPI         = "logging_api"
	ReasonLoggingStats       = "logging_stats"
	ReasonSocketIOTransport  = "socketio_transport"
	ReasonNonBusinessAPI     = "non_business_api"
)

// DefaultBusinessPrefixes lists the URL prefixes that count as business
// API traffic when strict filtering is on.
var DefaultBusinessPrefixes = []string{
	"/api/customer/",
	"/api/restaurant/",
	"/api/restaurant-details/",
	"/api/orders/",
	"/api/menu/",
	"/api/payment/",
	"/api/delivery/",
	"/api/user/",
	"/api/search/",
	"/api/reviews/",
	"/api/auth/",
	"/api/balance/",
	"/api/profile/",
	"/api/settings/",
	"/api/nearby/",
	"/api/place-order/",
	"/api/logout",
	"/api/register",
	"/api/login",
}

// Config controls the optional strict business-API rule.
type Config struct {
	// StrictBusinessFilter flags http_request events outside
	// BusinessPrefixes as non_business_api noise.
	StrictBusinessFilter bool
	BusinessPrefixes     []string
}

// Classifier decides whether an event is system noise. Classification is
// pure: deterministic over the event name and details, no side effects.
type Classifier struct {
	strict   bool
	prefixes []string
}

func New(cfg Config) *Classifier {
	prefixes := cfg.BusinessPrefixes
	if len(prefixes) == 0 {
		prefixes = DefaultBusinessPrefixes
	}
	return &Classifier{
		strict:   cfg.StrictBusinessFilter,
		prefixes: prefixes,
	}
}

// Classify evaluates the noise rules in order; first match wins. Absent
// detail fields fail their rule and fall through.
func (c *Classifier) Classify(eventName string, details map[string]any) Verdict {
	if eventName == core.EventHTTPRequest {
		if strings.EqualFold(stringField(details, "method"), "OPTIONS") {
			return Verdict{Noise: true, Reason: ReasonCORSPreflight}
		}
	}

	if eventName == core.EventNavigation {
		switch intField(details, "statusCode") {
		case 301:
			return Verdict{Noise: true, Reason: ReasonMovedPermanently}
		case 302:
			return Verdict{Noise: true, Reason: ReasonTemporaryRedirect}
		case 308:
			return Verdict{Noise: true, Reason: ReasonPermanentRedirect}
		}
	}

	if eventName == core.EventHTTPRequest {
		if stringField(details, "trigger") == "browser" {
			return Verdict{Noise: true, Reason: ReasonBrowserInitiated}
		}

		url := stringField(details, "url")
		switch {
		case strings.Contains(url, "/favicon"):
			return Verdict{Noise: true, Reason: ReasonFaviconRequest}
		case strings.Contains(url, "/health"):
			return Verdict{Noise: true, Reason: ReasonHealthCheck}
		case strings.Contains(url, "/api/logs/stats"):
			return Verdict{Noise: true, Reason: ReasonLoggingStats}
		case strings.Contains(url, "/api/logs"):
			return Verdict{Noise: true, Reason: ReasonLoggingAPI}
		case strings.Contains(url, "/socket.io"):
			return Verdict{Noise: true, Reason: ReasonSocketIOTransport}
		}

		if c.strict && !c.isBusinessURL(url) {
			return Verdict{Noise: true, Reason: ReasonNonBusinessAPI}
		}
	}

	return Verdict{}
}

func (c *Classifier) isBusinessURL(url string) bool {
	path := url
	if i := strings.Index(url, "://"); i >= 0 {
		rest := url[i+3:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			path = rest[j:]
		} else {
			path = "/"
		}
	}
	for _, prefix := range c.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func stringField(details map[string]any, key string) string {
	if details == nil {
		return ""
	}
	s, _ := details[key].(string)
	return s
}

// intField tolerates the numeric types a decoded JSON payload may carry.
func intField(details map[string]any, key string) int {
	if details == nil {
		return 0
	}
	switch v := details[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
