package domain

// RejectionReason classifies why a hit was discarded. One hit may carry
// several reasons at once; statistics count every one of them.
type RejectionReason int

const (
	ReasonInvalidMethod RejectionReason = iota
	ReasonHTTPRedirect
	ReasonHTTPError
	ReasonBot
	ReasonInvalidUserAgent
	ReasonInvalidClientName
	ReasonInvalidClientVersion
	ReasonStaticResource
	ReasonInvalidGeolocation
	ReasonInvalidLocalDatetime
)

var reasonNames = map[RejectionReason]string{
	ReasonInvalidMethod:        "invalid_method",
	ReasonHTTPRedirect:         "http_redirect",
	ReasonHTTPError:            "http_error",
	ReasonBot:                  "bot",
	ReasonInvalidUserAgent:     "invalid_user_agent",
	ReasonInvalidClientName:    "invalid_client_name",
	ReasonInvalidClientVersion: "invalid_client_version",
	ReasonStaticResource:       "static_resource",
	ReasonInvalidGeolocation:   "invalid_geolocation",
	ReasonInvalidLocalDatetime: "invalid_local_datetime",
}

func (r RejectionReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}
