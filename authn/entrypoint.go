package authn

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/jrsteele09/go-authserver-security/oauth2"
)

const DefaultRealm = "oauth2/client"

// EntryPoint writes the challenge for a request that needs authentication.
type EntryPoint interface {
	Commence(w http.ResponseWriter, r *http.Request, err error)
}

// EntryPointFunc adapts a function to EntryPoint.
type EntryPointFunc func(w http.ResponseWriter, r *http.Request, err error)

func (f EntryPointFunc) Commence(w http.ResponseWriter, r *http.Request, err error) { f(w, r, err) }

// BasicEntryPoint issues an HTTP Basic challenge for its realm.
type BasicEntryPoint struct {
	Realm string
}

func (e *BasicEntryPoint) Commence(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", e.Realm))
	oauth2.WriteJSON(w, http.StatusUnauthorized, &oauth2.Error{
		Code:        "unauthorized",
		Description: failureDescription(err, "Full authentication is required to access this resource"),
	})
}

// OAuth2EntryPoint issues an OAuth2 error challenge. TypeName distinguishes the
// credential transport that was rejected, e.g. "Form" for client credentials posted
// in the request body.
type OAuth2EntryPoint struct {
	TypeName string
	Realm    string
}

func (e *OAuth2EntryPoint) Commence(w http.ResponseWriter, _ *http.Request, err error) {
	oe := oauth2.ErrInvalidClient(failureDescription(err, "Bad client credentials"))
	typeName := e.TypeName
	if typeName == "" {
		typeName = "Bearer"
	}
	challenge := fmt.Sprintf("%s realm=%q, error=%q, error_description=%q", typeName, e.Realm, oe.Code, oe.Description)
	w.Header().Set("WWW-Authenticate", challenge)
	oauth2.WriteJSON(w, oe.Status, oe)
}

// ForbiddenEntryPoint rejects with 403 and no challenge. It is the fallback when
// nothing else claims the request.
type ForbiddenEntryPoint struct{}

func (ForbiddenEntryPoint) Commence(w http.ResponseWriter, _ *http.Request, _ error) {
	oauth2.WriteJSON(w, http.StatusForbidden, &oauth2.Error{
		Code:        oauth2.ErrorCodeAccessDenied,
		Description: "Access Denied",
	})
}

func failureDescription(err error, fallback string) string {
	var af *apperrors.AuthenticationFailure
	if apperrors.As(err, &af) && af.Reason != "" {
		return capitalise(af.Reason)
	}
	return fallback
}

func capitalise(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type entryPointMapping struct {
	matcher    RequestMatcher
	entryPoint EntryPoint
}

// DelegatingEntryPoint evaluates its (matcher, entry point) pairs in registration order
// and commences the first match, or the fallback when nothing matches.
type DelegatingEntryPoint struct {
	mappings []entryPointMapping
	fallback EntryPoint
}

func NewDelegatingEntryPoint(fallback EntryPoint) *DelegatingEntryPoint {
	if fallback == nil {
		fallback = ForbiddenEntryPoint{}
	}
	return &DelegatingEntryPoint{fallback: fallback}
}

// Add registers ep as the entry point for requests matched by m.
func (d *DelegatingEntryPoint) Add(m RequestMatcher, ep EntryPoint) *DelegatingEntryPoint {
	d.mappings = append(d.mappings, entryPointMapping{matcher: m, entryPoint: ep})
	return d
}

// Match returns the registered entry point for r, if one matches.
func (d *DelegatingEntryPoint) Match(r *http.Request) (EntryPoint, bool) {
	for _, m := range d.mappings {
		if m.matcher.Matches(r) {
			return m.entryPoint, true
		}
	}
	return nil, false
}

// Select returns the entry point that would commence for r.
func (d *DelegatingEntryPoint) Select(r *http.Request) EntryPoint {
	if ep, ok := d.Match(r); ok {
		return ep
	}
	return d.fallback
}

func (d *DelegatingEntryPoint) Commence(w http.ResponseWriter, r *http.Request, err error) {
	d.Select(r).Commence(w, r, err)
}

// AccessDeniedHandler handles an authenticated request that lacks permission.
type AccessDeniedHandler interface {
	Handle(w http.ResponseWriter, r *http.Request, err error)
}

// OAuth2AccessDeniedHandler answers 403 with an access_denied error body.
type OAuth2AccessDeniedHandler struct{}

func (OAuth2AccessDeniedHandler) Handle(w http.ResponseWriter, _ *http.Request, err error) {
	desc := "Access is denied"
	if err != nil {
		desc = capitalise(err.Error())
	}
	oauth2.WriteJSON(w, http.StatusForbidden, &oauth2.Error{
		Code:        oauth2.ErrorCodeAccessDenied,
		Description: desc,
	})
}
