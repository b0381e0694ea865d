// internal/app/system/authz/authz.go
package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dalemusser/compliancehub/internal/domain/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Caller identity is asserted by a trusted upstream (gateway or proxy);
// this service does not authenticate.
const (
	HeaderAgencyID = "X-Agency-ID"
	HeaderRole     = "X-Role"
)

// Role is what the caller may do.
type Role string

const (
	RoleAgency   Role = "agency"   // files and edits its own submissions
	RoleReviewer Role = "reviewer" // approves or rejects submissions
	RoleAdmin    Role = "admin"    // everything, including reconciliation
)

func (r Role) valid() bool {
	return r == RoleAgency || r == RoleReviewer || r == RoleAdmin
}

// Caller is the identity attached to a request.
type Caller struct {
	AgencyID primitive.ObjectID // zero when the caller is not acting for an agency
	Role     Role
}

// HasAgency reports whether the caller acts for an agency.
func (c Caller) HasAgency() bool { return !c.AgencyID.IsZero() }

// HasAnyRole reports whether the caller holds one of roles. Admin holds all.
func (c Caller) HasAnyRole(roles ...Role) bool {
	if c.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}

// FromRequest parses the caller headers. A missing role defaults to agency.
func FromRequest(r *http.Request) (Caller, error) {
	var c Caller
	if raw := strings.TrimSpace(r.Header.Get(HeaderAgencyID)); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return Caller{}, errs.Invalid("%s: not an object id", HeaderAgencyID)
		}
		c.AgencyID = id
	}
	c.Role = Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderRole))))
	if c.Role == "" {
		c.Role = RoleAgency
	}
	if !c.Role.valid() {
		return Caller{}, errs.Invalid("%s: unknown role %q", HeaderRole, c.Role)
	}
	return c, nil
}

type ctxKey struct{}

// WithCaller returns ctx carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// CallerCtx returns the caller stored by Identify.
func CallerCtx(r *http.Request) (Caller, bool) {
	c, ok := r.Context().Value(ctxKey{}).(Caller)
	return c, ok
}

// Identify parses the caller headers into the request context. Malformed
// headers are rejected with 400.
func Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := FromRequest(r)
		if err != nil {
			deny(w, http.StatusBadRequest, errs.KindInvalid, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), c)))
	})
}

// RequireAgency rejects callers without an agency identity with 401.
func RequireAgency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := CallerCtx(r)
		if !c.HasAgency() {
			deny(w, http.StatusUnauthorized, errs.Kind("unauthorized"), HeaderAgencyID+" header is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects callers holding none of roles with 403.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, _ := CallerCtx(r)
			if !c.HasAnyRole(roles...) {
				deny(w, http.StatusForbidden, errs.KindForbidden, "role not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, kind errs.Kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(kind), "message": msg})
}
