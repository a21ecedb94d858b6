package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/LuisFaxas/faxas-property-sub000/internal/auth"
	"github.com/LuisFaxas/faxas-property-sub000/internal/obs"
	"github.com/LuisFaxas/faxas-property-sub000/internal/ratelimit"
)

// publicPaths bypass authentication entirely.
var publicPaths = map[string]struct{}{
	"/healthz": {},
	"/readyz":  {},
	"/v1/info": {},
	"/metrics": {},
}

// Authenticate verifies the bearer credential, resolves the principal and
// applies the per-principal rate limit. Every verification failure collapses
// into one generic 401; the specific kind reaches the audit trail only.
func (a *API) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, public := publicPaths[r.URL.Path]; public {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.verifier.Verify(r.Context(), bearerToken(r))
		if err != nil {
			a.auditVerifyFailure(r, err)
			writeError(w, http.StatusUnauthorized, "Authentication failed")
			return
		}

		principal, err := a.resolver.ResolvePrincipal(r.Context(), claims.Subject)
		if err != nil {
			translateError(w, err)
			return
		}

		tier := ratelimit.TierFor(principal.Role)
		res, err := a.limiter.Check(r.Context(), principal.ID, tier)
		if err != nil {
			translateError(w, err)
			return
		}
		if !res.Allowed {
			obs.ObserveRateLimitDenial()
			retry := int64(res.RetryAfter.Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please slow down and try again.")
			return
		}

		ctx := auth.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (a *API) auditVerifyFailure(r *http.Request, err error) {
	if a.decisions == nil {
		return
	}
	kind := "unknown"
	var verr *auth.VerifyError
	if errors.As(err, &verr) {
		kind = string(verr.Kind)
	}
	a.decisions.Decision(r.Context(), "", "", "", "", false, "credential rejected: "+kind)
}
