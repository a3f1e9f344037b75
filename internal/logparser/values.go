package logparser

// Line grammars for the NCSA-extended access-log family. The variants
// differ in whether a domain token precedes the address field and
// whether that field is a single address or a comma-separated candidate
// list (proxy chains). Patterns follow matomo-log-analytics.
const (
	patternCommonLogFormat = `(?P<ip>[\w*.:-]+)\s+\S+\s+(?P<userid>\S+)\s+\[(?P<date>.*?)\s+(?P<timezone>.*?)\]\s+` +
		`"(?P<method>\S+)\s+(?P<path>.*?)\s+\S+"\s+(?P<status>\d+)\s+(?P<length>\S+)`

	patternCommonLogFormatIPList = `(?P<ip_list>[\w*.:, -]+?)\s+\S+\s+(?P<userid>\S+)\s+\[(?P<date>.*?)\s+(?P<timezone>.*?)\]\s+` +
		`"(?P<method>\S+)\s+(?P<path>.*?)\s+\S+"\s+(?P<status>\d+)\s+(?P<length>\S+)`

	patternNCSAExtendedSuffix = `\s+"(?P<referrer>.*?)"\s+"(?P<user_agent>.*?)"`

	patternDomainPrefix = `(?P<domain>\S+)\s+`
)

var (
	patternNCSAExtended             = "^" + patternCommonLogFormat + patternNCSAExtendedSuffix
	patternNCSAExtendedDomain       = "^" + patternDomainPrefix + patternCommonLogFormat + patternNCSAExtendedSuffix
	patternNCSAExtendedIPList       = "^" + patternCommonLogFormatIPList + patternNCSAExtendedSuffix
	patternNCSAExtendedDomainIPList = "^" + patternDomainPrefix + patternCommonLogFormatIPList + patternNCSAExtendedSuffix
)

// staticExtensions rejects requests for site furniture. Both the file
// extension and the literal filename are tested against this set.
var staticExtensions = map[string]struct{}{
	"gif":   {},
	"jpg":   {},
	"jpeg":  {},
	"png":   {},
	"bmp":   {},
	"ico":   {},
	"svg":   {},
	"svgz":  {},
	"ttf":   {},
	"otf":   {},
	"eot":   {},
	"woff":  {},
	"woff2": {},
	"class": {},
	"swf":   {},
	"css":   {},
	"js":    {},
	"xml":   {},
	"webp":  {},
}

// downloadExtensions classifies requests that fetch a document artifact
// (COUNTER "download" investigations).
var downloadExtensions = map[string]struct{}{
	"7z": {}, "aac": {}, "arc": {}, "arj": {}, "asf": {}, "asx": {},
	"avi": {}, "bin": {}, "csv": {}, "deb": {}, "dmg": {}, "doc": {},
	"docx": {}, "exe": {}, "flac": {}, "flv": {}, "gz": {}, "gzip": {},
	"hqx": {}, "ibooks": {}, "jar": {}, "json": {}, "mpg": {}, "mp2": {},
	"mp3": {}, "mp4": {}, "mpeg": {}, "mov": {}, "movie": {}, "msi": {},
	"msp": {}, "odb": {}, "odf": {}, "odg": {}, "odp": {}, "ods": {},
	"odt": {}, "ogg": {}, "ogv": {}, "pdf": {}, "phps": {}, "ppt": {},
	"pptx": {}, "qt": {}, "qtm": {}, "ra": {}, "ram": {}, "rar": {},
	"rpm": {}, "rtf": {}, "sea": {}, "sit": {}, "tar": {}, "tbz": {},
	"bz2": {}, "tgz": {}, "torrent": {}, "txt": {}, "wav": {}, "webm": {},
	"wma": {}, "wmv": {}, "wpd": {}, "xls": {}, "xlsx": {}, "xml": {},
	"xsd": {}, "z": {}, "zip": {}, "azw3": {}, "epub": {}, "mobi": {},
	"apk": {}, "md5": {}, "sig": {},
}
