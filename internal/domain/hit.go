package domain

import "strings"

// Hit represents a single access-log line under evaluation.
// It is built once per line and never persisted as an object;
// only its serialized Record form is.
type Hit struct {
	Method        string
	Status        string
	UserAgent     string
	ClientName    string
	ClientVersion string
	IP            string
	Geolocation   string // "latitude\tlongitude" or ISO country code
	LocalDatetime string // "2006-01-02 15:04:05", timezone-corrected
	Action        string
}

// Record is the normalized six-field row persisted in a day-bucketed
// pretable. Field order is the on-disk contract.
func (h *Hit) Record() Record {
	return Record{
		ServerTime:     h.LocalDatetime,
		BrowserName:    h.ClientName,
		BrowserVersion: h.ClientVersion,
		IP:             h.IP,
		Geolocation:    h.Geolocation,
		ActionName:     h.Action,
	}
}

// Record is a normalized usage record ready for pretable storage.
type Record struct {
	ServerTime     string
	BrowserName    string
	BrowserVersion string
	IP             string
	Geolocation    string
	ActionName     string
}

// Day returns the calendar day (yyyy-mm-dd) embedded in ServerTime.
func (r Record) Day() string {
	if i := strings.IndexByte(r.ServerTime, ' '); i > 0 {
		return r.ServerTime[:i]
	}
	return r.ServerTime
}

// TSV serializes the record in pretable column order.
// Geolocation may itself contain a tab (latitude/longitude pair).
func (r Record) TSV() string {
	return strings.Join([]string{
		r.ServerTime,
		r.BrowserName,
		r.BrowserVersion,
		r.IP,
		r.Geolocation,
		r.ActionName,
	}, "\t")
}

// PretableHeader is the mandatory header row of every pretable file.
// The geolocation field spans the latitude and longitude columns.
var PretableHeader = []string{
	"serverTime",
	"browserName",
	"browserVersion",
	"ip",
	"latitude",
	"longitude",
	"actionName",
}
