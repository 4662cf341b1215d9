package filterchain

import (
	"net/http"
)

// Filter names used in Pipeline.Order.
const (
	ChannelSecurityFilterName      = "ChannelSecurityFilter"
	ClientCredentialsFilterName    = "ClientCredentialsFilter"
	BasicAuthenticationFilterName  = "BasicAuthenticationFilter"
	ExceptionTranslationFilterName = "ExceptionTranslationFilter"
	RateLimitFilterName            = "RateLimitFilter"
)

// Filter is a named middleware step of the token endpoint pipeline.
type Filter interface {
	Name() string
	Wrap(next http.HandlerFunc) http.HandlerFunc
}

type namedFilter struct {
	name string
	mw   func(http.HandlerFunc) http.HandlerFunc
}

func (f namedFilter) Name() string                                { return f.name }
func (f namedFilter) Wrap(next http.HandlerFunc) http.HandlerFunc { return f.mw(next) }

// NewFilter names a plain middleware function so it can join a pipeline.
func NewFilter(name string, mw func(http.HandlerFunc) http.HandlerFunc) Filter {
	return namedFilter{name: name, mw: mw}
}

// Chain wraps final so that filters run in slice order.
func Chain(final http.HandlerFunc, filters ...Filter) http.HandlerFunc {
	chained := final
	for i := len(filters) - 1; i >= 0; i-- {
		chained = filters[i].Wrap(chained)
	}
	return chained
}

func indexOf(filters []Filter, name string) int {
	for i, f := range filters {
		if f.Name() == name {
			return i
		}
	}
	return -1
}

// insertBefore places fs, in order, immediately ahead of the first filter named target.
// When target is absent they are appended.
func insertBefore(filters []Filter, target string, fs ...Filter) []Filter {
	i := indexOf(filters, target)
	if i < 0 {
		return append(filters, fs...)
	}
	out := make([]Filter, 0, len(filters)+len(fs))
	out = append(out, filters[:i]...)
	out = append(out, fs...)
	return append(out, filters[i:]...)
}
