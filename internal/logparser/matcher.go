package logparser

import (
	"net/netip"
	"regexp"
	"strings"
)

// Fields holds the named groups extracted from one matched line, plus
// the resolved caller address.
type Fields struct {
	Domain    string
	IP        string
	UserID    string
	Date      string
	Timezone  string
	Method    string
	Path      string
	Status    string
	Length    string
	Referrer  string
	UserAgent string
}

type addrType int

const (
	addrUnknown addrType = iota
	addrLocal
	addrRemote
)

type grammar struct {
	re     *regexp.Regexp
	ipList bool
}

// Matcher tries an ordered list of line grammars against raw lines and
// resolves the caller address, preferring routable candidates when a
// line carries a proxy-chain list.
type Matcher struct {
	grammars []grammar
}

// NewMatcher compiles the grammar list in fixed priority order. The
// list variants run before the domain variants so a proxy chain is
// never misread as a domain token followed by a single address.
func NewMatcher() *Matcher {
	return &Matcher{
		grammars: []grammar{
			{re: regexp.MustCompile(patternNCSAExtended)},
			{re: regexp.MustCompile(patternNCSAExtendedIPList), ipList: true},
			{re: regexp.MustCompile(patternNCSAExtendedDomain)},
			{re: regexp.MustCompile(patternNCSAExtendedDomainIPList), ipList: true},
		},
	}
}

// Match tries every grammar in priority order. It returns the matched
// field groups with the resolved IP, or false when no grammar yields a
// usable address. An unmatched line is a statistic, not an error.
func (m *Matcher) Match(line string) (*Fields, bool) {
	for _, g := range m.grammars {
		sub := g.re.FindStringSubmatch(line)
		if sub == nil {
			continue
		}

		groups := groupMap(g.re, sub)

		if !g.ipList {
			ip := groups["ip"]
			if classifyAddr(ip) != addrUnknown {
				return fieldsFrom(groups, ip), true
			}
			continue
		}

		if ip, ok := resolveFromList(groups["ip_list"]); ok {
			return fieldsFrom(groups, ip), true
		}
	}

	return nil, false
}

// resolveFromList picks the first routable candidate from a
// comma-separated address list, falling back to the first candidate
// that at least parses (private/loopback).
func resolveFromList(list string) (string, bool) {
	var local string

	for _, candidate := range strings.Split(list, ",") {
		candidate = strings.TrimSpace(candidate)
		switch classifyAddr(candidate) {
		case addrRemote:
			return candidate, true
		case addrLocal:
			if local == "" {
				local = candidate
			}
		}
	}

	if local != "" {
		return local, true
	}
	return "", false
}

func classifyAddr(s string) addrType {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return addrUnknown
	}

	switch {
	// Multicast first: link-local multicast (224.0.0.0/24) must not be
	// claimed as a usable local address.
	case addr.IsMulticast(), addr.IsUnspecified():
		return addrUnknown
	case addr.IsLoopback(), addr.IsPrivate(), addr.IsLinkLocalUnicast():
		return addrLocal
	default:
		return addrRemote
	}
}

func groupMap(re *regexp.Regexp, sub []string) map[string]string {
	groups := make(map[string]string, len(sub))
	for i, name := range re.SubexpNames() {
		if name != "" && i < len(sub) {
			groups[name] = sub[i]
		}
	}
	return groups
}

func fieldsFrom(groups map[string]string, ip string) *Fields {
	return &Fields{
		Domain:    groups["domain"],
		IP:        ip,
		UserID:    groups["userid"],
		Date:      groups["date"],
		Timezone:  groups["timezone"],
		Method:    groups["method"],
		Path:      groups["path"],
		Status:    groups["status"],
		Length:    groups["length"],
		Referrer:  groups["referrer"],
		UserAgent: groups["user_agent"],
	}
}
