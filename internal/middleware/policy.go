package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Rule lists the roles permitted on a route. An empty list admits any
// authenticated caller.
type Rule struct {
	Roles []string
}

// Policy maps "METHOD route-pattern" to the rule guarding it. Routes not in
// the table are public.
type Policy map[string]Rule

// Require records that method+path needs an authenticated caller holding
// one of roles.
func (p Policy) Require(method, path string, roles ...string) {
	p[method+" "+path] = Rule{Roles: roles}
}

// Lookup returns the rule for a route pattern, if any.
func (p Policy) Lookup(method, path string) (Rule, bool) {
	rule, ok := p[method+" "+path]
	return rule, ok
}

// Guard is the single access check applied to every API route. It consults
// policy using the matched route pattern; guarded routes go through
// Authenticate then Authorize, others pass straight through.
func Guard(verifier TokenVerifier, policy Policy) echo.MiddlewareFunc {
	authenticate := Authenticate(verifier)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		guarded := make(map[string]echo.HandlerFunc, len(policy))
		for key, rule := range policy {
			guarded[key] = authenticate(Authorize(rule.Roles...)(next))
		}
		return func(c echo.Context) error {
			method := c.Request().Method
			if method == http.MethodHead {
				method = http.MethodGet
			}
			if h, ok := guarded[method+" "+c.Path()]; ok {
				return h(c)
			}
			return next(c)
		}
	}
}
