package authn

import (
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

// DefaultMediaTypes are the response types for which the resolved entry point is the
// registered challenge.
var DefaultMediaTypes = []string{
	"application/atom+xml",
	"application/x-www-form-urlencoded",
	"application/json",
	"application/octet-stream",
	"application/xml",
	"multipart/form-data",
	"text/xml",
}

// RequestMatcher is an explicit predicate over an inbound request.
type RequestMatcher interface {
	Matches(r *http.Request) bool
}

// RequestMatcherFunc adapts a function to RequestMatcher.
type RequestMatcherFunc func(r *http.Request) bool

func (f RequestMatcherFunc) Matches(r *http.Request) bool { return f(r) }

// MediaTypeMatcher matches when any media type the request accepts is compatible with
// one of its media types. Ignored types (by default */*) never count as a match.
type MediaTypeMatcher struct {
	mediaTypes []mediaType
	ignored    []mediaType
}

func NewMediaTypeMatcher(mediaTypes ...string) *MediaTypeMatcher {
	m := &MediaTypeMatcher{ignored: []mediaType{{typ: "*", subtype: "*"}}}
	for _, mt := range mediaTypes {
		if parsed, ok := parseMediaType(mt); ok {
			m.mediaTypes = append(m.mediaTypes, parsed)
		}
	}
	return m
}

// IgnoreMediaTypes replaces the ignored set.
func (m *MediaTypeMatcher) IgnoreMediaTypes(mediaTypes ...string) *MediaTypeMatcher {
	m.ignored = nil
	for _, mt := range mediaTypes {
		if parsed, ok := parseMediaType(mt); ok {
			m.ignored = append(m.ignored, parsed)
		}
	}
	return m
}

func (m *MediaTypeMatcher) Matches(r *http.Request) bool {
	for _, accepted := range acceptedMediaTypes(r) {
		if m.isIgnored(accepted) {
			continue
		}
		for _, mt := range m.mediaTypes {
			if mt.compatible(accepted) {
				return true
			}
		}
	}
	return false
}

func (m *MediaTypeMatcher) isIgnored(mt mediaType) bool {
	for _, ig := range m.ignored {
		if ig.typ == mt.typ && ig.subtype == mt.subtype {
			return true
		}
	}
	return false
}

type mediaType struct {
	typ     string
	subtype string
	quality float64
}

func parseMediaType(value string) (mediaType, bool) {
	base, params, err := mime.ParseMediaType(strings.TrimSpace(value))
	if err != nil {
		return mediaType{}, false
	}
	typ, subtype, ok := strings.Cut(base, "/")
	if !ok {
		return mediaType{}, false
	}
	q := 1.0
	if raw, ok := params["q"]; ok {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			q = parsed
		}
	}
	return mediaType{typ: typ, subtype: subtype, quality: q}, true
}

func (m mediaType) suffix() string {
	if _, after, ok := strings.Cut(m.subtype, "+"); ok {
		return after
	}
	return ""
}

// compatible follows the usual media range rules: wildcards match anything and
// application/*+xml matches application/atom+xml.
func (m mediaType) compatible(other mediaType) bool {
	if m.typ == "*" || other.typ == "*" {
		return true
	}
	if m.typ != other.typ {
		return false
	}
	if m.subtype == other.subtype || m.subtype == "*" || other.subtype == "*" {
		return true
	}
	for _, pair := range [][2]mediaType{{m, other}, {other, m}} {
		wild, concrete := pair[0], pair[1]
		if strings.HasPrefix(wild.subtype, "*+") && wild.suffix() == concrete.suffix() {
			return true
		}
	}
	return false
}

// acceptedMediaTypes parses the Accept header in preference order. A request with no
// Accept header accepts */*. Ranges with q=0 are refused and dropped.
func acceptedMediaTypes(r *http.Request) []mediaType {
	header := strings.Join(r.Header.Values("Accept"), ",")
	if strings.TrimSpace(header) == "" {
		return []mediaType{{typ: "*", subtype: "*", quality: 1}}
	}
	var out []mediaType
	for _, part := range strings.Split(header, ",") {
		mt, ok := parseMediaType(part)
		if !ok || mt.quality <= 0 {
			continue
		}
		out = append(out, mt)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].quality > out[j].quality
	})
	return out
}
