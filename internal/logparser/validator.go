package logparser

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pitangainnovare/scielo-usage-counter/internal/device"
	"github.com/pitangainnovare/scielo-usage-counter/internal/domain"
	"github.com/pitangainnovare/scielo-usage-counter/internal/geo"
	"github.com/pitangainnovare/scielo-usage-counter/internal/robots"
)

const logDateLayout = "02/Jan/2006:15:04:05"

// Validator applies every validation rule to a matched line and builds
// the normalized hit. Rules are not short-circuited: every rejection
// reason is captured for statistics even though the hit is discarded as
// a whole on the first failure.
type Validator struct {
	robots     *robots.Matcher
	classifier device.Classifier
	geoLookup  *geo.Lookup

	// countryOnly switches the geolocation field from the
	// latitude/longitude pair to the ISO country code
	countryOnly bool
}

// NewValidator wires the injected collaborators into a validator
func NewValidator(r *robots.Matcher, c device.Classifier, g *geo.Lookup, countryOnly bool) *Validator {
	return &Validator{
		robots:      r,
		classifier:  c,
		geoLookup:   g,
		countryOnly: countryOnly,
	}
}

// Validate applies all rules to the matched fields. It returns the
// normalized hit, the set of rejection reasons, and whether the hit was
// accepted. rawLine is used only for diagnostics.
func (v *Validator) Validate(fields *Fields, rawLine string) (domain.Hit, []domain.RejectionReason, bool) {
	var reasons []domain.RejectionReason
	valid := true

	hit := domain.Hit{
		Method: fields.Method,
		Status: fields.Status,
		IP:     fields.IP,
	}

	if !HasValidMethod(hit.Method) {
		reasons = append(reasons, domain.ReasonInvalidMethod)
		valid = false
	}

	if !HasValidStatus(hit.Status) {
		if StatusIsRedirect(hit.Status) {
			reasons = append(reasons, domain.ReasonHTTPRedirect)
		} else if StatusIsError(hit.Status) {
			reasons = append(reasons, domain.ReasonHTTPError)
		}
		valid = false
	}

	hit.UserAgent = FormatUserAgent(fields.UserAgent)

	if v.robots.IsBot(hit.UserAgent) {
		reasons = append(reasons, domain.ReasonBot)
		valid = false
	}

	client, err := v.classifier.Classify(hit.UserAgent)
	if err != nil {
		// An internal classifier failure is a diagnostic, not a crash.
		// The hit degrades to an unknown client and processing continues.
		log.Error().
			Err(err).
			Str("user_agent", hit.UserAgent).
			Str("line", rawLine).
			Msg("Failed to classify user agent")
		client = device.Client{Name: device.UnknownToken, Version: device.UnknownToken}
		reasons = append(reasons, domain.ReasonInvalidUserAgent)
		valid = false
	}

	hit.ClientName = client.Name
	if hit.ClientName == "" {
		reasons = append(reasons, domain.ReasonInvalidClientName)
		valid = false
	}

	hit.ClientVersion = client.Version
	if hit.ClientVersion == "" {
		reasons = append(reasons, domain.ReasonInvalidClientVersion)
		valid = false
	}

	hit.Action = fields.Path
	if !HasValidPath(hit.Action) {
		reasons = append(reasons, domain.ReasonStaticResource)
		valid = false
	}

	geoValue, ok := v.resolveGeo(hit.IP)
	if !ok {
		reasons = append(reasons, domain.ReasonInvalidGeolocation)
		valid = false
	}
	hit.Geolocation = geoValue

	localDatetime, ok := FormatDate(fields.Date, fields.Timezone)
	if !ok {
		reasons = append(reasons, domain.ReasonInvalidLocalDatetime)
		valid = false
	}
	hit.LocalDatetime = localDatetime

	return hit, reasons, valid
}

func (v *Validator) resolveGeo(ip string) (string, bool) {
	if v.countryOnly {
		return v.geoLookup.CountryCode(ip)
	}
	return v.geoLookup.Geolocation(ip)
}

// HasValidMethod accepts only GET and HEAD requests
func HasValidMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return true
	}
	return false
}

// HasValidStatus accepts only 200 and 304 responses
func HasValidStatus(status string) bool {
	return status == "200" || status == "304"
}

// StatusIsRedirect classifies 3xx responses, excluding 304
func StatusIsRedirect(status string) bool {
	return strings.HasPrefix(status, "3") && status != "304"
}

// StatusIsError classifies 4xx and 5xx responses
func StatusIsError(status string) bool {
	return strings.HasPrefix(status, "4") || strings.HasPrefix(status, "5")
}

// FormatUserAgent strips a single pair of surrounding quotes
func FormatUserAgent(ua string) string {
	if strings.HasPrefix(ua, `"`) && len(ua) >= 2 {
		return ua[1 : len(ua)-1]
	}
	return ua
}

// HasValidPath rejects requests for static site resources
func HasValidPath(path string) bool {
	return !ActionIsStaticFile(path)
}

// ActionIsStaticFile reports whether the request path (stripped of its
// query string) names a static resource, by extension or by literal
// filename.
func ActionIsStaticFile(path string) bool {
	file := pathPart(path)
	ext := extensionOf(file)

	if _, ok := staticExtensions[ext]; ok {
		return true
	}
	if _, ok := staticExtensions[file]; ok {
		return true
	}
	return false
}

// ActionIsDownload reports whether the request path fetches a document
// artifact (pdf, epub, media).
func ActionIsDownload(path string) bool {
	file := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		file = path[i+1:]
	}

	_, ok := downloadExtensions[extensionOf(file)]
	return ok
}

// FormatDate normalizes the log-local date/time plus a ±HHMM UTC offset
// into a "2006-01-02 15:04:05" UTC-adjusted string.
func FormatDate(date, timezone string) (string, bool) {
	t, err := time.Parse(logDateLayout, date)
	if err != nil {
		return "", false
	}

	offset, ok := timezoneDelta(timezone)
	if !ok {
		return "", false
	}

	return t.Add(-offset).Format("2006-01-02 15:04:05"), true
}

// timezoneDelta converts a numeric ±HHMM offset into a duration
// (hours = offset/100, minutes = offset%100, same sign).
func timezoneDelta(timezone string) (time.Duration, bool) {
	tz, err := strconv.Atoi(strings.TrimSpace(timezone))
	if err != nil {
		return 0, false
	}

	hours := tz / 100
	minutes := tz % 100

	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, true
}

func pathPart(p string) string {
	if u, err := url.Parse(p); err == nil {
		return u.Path
	}
	// fall back to a manual query strip for unparseable paths
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}

func extensionOf(file string) string {
	if i := strings.LastIndexByte(file, '.'); i >= 0 {
		return strings.ToLower(file[i+1:])
	}
	return strings.ToLower(file)
}
