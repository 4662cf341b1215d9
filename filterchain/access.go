package filterchain

import (
	"regexp"
	"strings"

	"github.com/jrsteele09/go-authserver-security/authn"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
)

const (
	DenyAll              = "denyAll()"
	PermitAll            = "permitAll()"
	IsAuthenticated      = "isAuthenticated()"
	IsFullyAuthenticated = "isFullyAuthenticated()"
)

var authorityExpr = regexp.MustCompile(`^(hasAuthority|hasRole|hasAnyAuthority|hasAnyRole)\((.*)\)$`)

// Expression is a parsed access rule for an endpoint.
type Expression struct {
	raw    string
	decide func(a *authn.Authentication) bool
}

func (e Expression) String() string { return e.raw }

// Permits reports whether a may access the endpoint. a is nil for unauthenticated requests.
func (e Expression) Permits(a *authn.Authentication) bool {
	return e.decide(a)
}

// ParseExpression understands denyAll(), permitAll(), isAuthenticated(),
// isFullyAuthenticated() and the hasAuthority/hasRole family with quoted arguments.
func ParseExpression(raw string) (Expression, error) {
	expr := strings.TrimSpace(raw)
	e := Expression{raw: expr}
	authenticated := func(a *authn.Authentication) bool { return a != nil && a.Authenticated }

	switch expr {
	case DenyAll:
		e.decide = func(*authn.Authentication) bool { return false }
		return e, nil
	case PermitAll:
		e.decide = func(*authn.Authentication) bool { return true }
		return e, nil
	case IsAuthenticated, IsFullyAuthenticated:
		e.decide = authenticated
		return e, nil
	}

	m := authorityExpr.FindStringSubmatch(expr)
	if m == nil {
		return Expression{}, apperrors.Configuration("access expression", "unsupported expression %q", raw)
	}
	args, err := quotedArgs(m[2])
	if err != nil || len(args) == 0 {
		return Expression{}, apperrors.Configuration("access expression", "invalid arguments in %q", raw)
	}
	if m[1] == "hasAuthority" || m[1] == "hasRole" {
		if len(args) != 1 {
			return Expression{}, apperrors.Configuration("access expression", "%s takes one argument", m[1])
		}
	}
	if strings.HasSuffix(m[1], "Role") {
		for i, a := range args {
			if !strings.HasPrefix(a, "ROLE_") {
				args[i] = "ROLE_" + a
			}
		}
	}
	e.decide = func(a *authn.Authentication) bool {
		if !authenticated(a) {
			return false
		}
		for _, want := range args {
			if a.HasAuthority(want) {
				return true
			}
		}
		return false
	}
	return e, nil
}

func quotedArgs(s string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if len(part) < 3 || part[0] != '\'' || part[len(part)-1] != '\'' {
			return nil, apperrors.ErrInvalidRequest
		}
		out = append(out, part[1:len(part)-1])
	}
	return out, nil
}
