package device

import "regexp"

// UnknownToken is emitted when a user agent carries no recognizable
// client name or version.
const UnknownToken = "UNK"

// Client is the classification result for one user agent
type Client struct {
	Name    string
	Version string
}

// Classifier turns a raw user-agent string into a client name/version
// pair. Implementations may fail internally; callers treat an error as
// "unknown client", never as a fatal condition.
type Classifier interface {
	Classify(userAgent string) (Client, error)
}

type rule struct {
	name string
	re   *regexp.Regexp
}

// TableClassifier classifies user agents with an ordered rule table.
// More specific products come first: embedded engines (GSA, Edge, Opera)
// advertise Chrome and Safari tokens too.
type TableClassifier struct {
	rules []rule
}

// NewTableClassifier builds the default classifier
func NewTableClassifier() *TableClassifier {
	return &TableClassifier{
		rules: []rule{
			{name: "Google Search App", re: regexp.MustCompile(`GSA/([\d.]+)`)},
			{name: "ED", re: regexp.MustCompile(`Edg(?:e|A|iOS)?/([\d.]+)`)},
			{name: "OP", re: regexp.MustCompile(`OPR/([\d.]+)`)},
			{name: "SM", re: regexp.MustCompile(`SamsungBrowser/([\d.]+)`)},
			{name: "UC", re: regexp.MustCompile(`UCBrowser/([\d.]+)`)},
			{name: "CM", re: regexp.MustCompile(`Chrome/([\d.]+) Mobile`)},
			{name: "CH", re: regexp.MustCompile(`Chrome/([\d.]+)`)},
			{name: "CR", re: regexp.MustCompile(`CriOS/([\d.]+)`)},
			{name: "FM", re: regexp.MustCompile(`Firefox/([\d.]+).+Mobile`)},
			{name: "FF", re: regexp.MustCompile(`(?:Firefox|FxiOS)/([\d.]+)`)},
			{name: "MF", re: regexp.MustCompile(`Mobile/\S+ Safari/([\d.]+)`)},
			{name: "SF", re: regexp.MustCompile(`Version/([\d.]+)[ \w./]*Safari/`)},
			{name: "IE", re: regexp.MustCompile(`(?:MSIE |rv:)([\d.]+)[^\d.]*(?:Trident|;)`)},
			{name: "curl", re: regexp.MustCompile(`curl/([\d.]+)`)},
			{name: "Wget", re: regexp.MustCompile(`Wget/([\d.]+)`)},
			{name: "Python Requests", re: regexp.MustCompile(`python-requests/([\d.]+)`)},
			{name: "okhttp", re: regexp.MustCompile(`okhttp/([\d.]+)`)},
		},
	}
}

// Classify resolves ua against the rule table. Unrecognized agents map
// to the unknown token for both fields.
func (c *TableClassifier) Classify(ua string) (Client, error) {
	for _, r := range c.rules {
		if m := r.re.FindStringSubmatch(ua); m != nil {
			version := m[1]
			if version == "" {
				version = UnknownToken
			}
			return Client{Name: r.name, Version: version}, nil
		}
	}
	return Client{Name: UnknownToken, Version: UnknownToken}, nil
}
