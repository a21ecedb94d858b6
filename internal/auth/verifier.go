package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyKind classifies why credential verification failed. The boundary
// collapses every kind into one generic 401; the kind survives internally
// for audit logging only.
type VerifyKind string

const (
	VerifyMissingCredential   VerifyKind = "missing-credential"
	VerifyMalformedCredential VerifyKind = "malformed-credential"
	VerifyExpired             VerifyKind = "expired"
	VerifyRevoked             VerifyKind = "revoked"
	VerifyInvalidSignature    VerifyKind = "invalid-signature"
	VerifyWrongAudience       VerifyKind = "wrong-audience"
	VerifyWrongIssuer         VerifyKind = "wrong-issuer"
	VerifyMissingSubject      VerifyKind = "missing-subject"
	VerifyFutureAuthTime      VerifyKind = "future-auth-time"
)

// ErrVerification is the generic target every VerifyError matches via
// errors.Is, so callers never branch on a specific kind by accident.
var ErrVerification = errors.New("auth: credential verification failed")

// VerifyError is a typed verification failure.
type VerifyError struct {
	Kind  VerifyKind
	cause error
}

func (e *VerifyError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("auth: credential verification failed (%s): %v", e.Kind, e.cause)
	}
	return fmt.Sprintf("auth: credential verification failed (%s)", e.Kind)
}

func (e *VerifyError) Unwrap() error { return e.cause }

func (e *VerifyError) Is(target error) bool { return target == ErrVerification }

func verifyErr(kind VerifyKind, cause error) *VerifyError {
	return &VerifyError{Kind: kind, cause: cause}
}

// Claims is the verified claim set handed to the principal resolver.
type Claims struct {
	Subject  string
	Email    string
	Audience string
	Issuer   string
	IssuedAt time.Time
	Expiry   time.Time
	AuthTime time.Time
	TokenID  string
}

// Verifier validates a bearer credential against the identity provider and
// yields a verified claim set. The engine never trusts claims that did not
// pass through this boundary.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Claims, error)
}

type bearerClaims struct {
	jwt.RegisteredClaims
	Email    string           `json:"email,omitempty"`
	AuthTime *jwt.NumericDate `json:"auth_time,omitempty"`
}

// JWTVerifier verifies HS256-signed bearer tokens issued by the external
// identity provider. Expected issuer and audience are mandatory.
type JWTVerifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
	revoked  func(tokenID string) bool
	parser   *jwt.Parser
}

// VerifierOption configures JWTVerifier behavior.
type VerifierOption func(*JWTVerifier)

// WithLeeway allows a small clock skew when validating time claims.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *JWTVerifier) {
		if d > 0 {
			v.leeway = d
		}
	}
}

// WithVerifierClock overrides the time source (useful for tests).
func WithVerifierClock(fn func() time.Time) VerifierOption {
	return func(v *JWTVerifier) {
		if fn != nil {
			v.now = fn
		}
	}
}

// WithRevocations installs a revocation check keyed by token id.
func WithRevocations(fn func(tokenID string) bool) VerifierOption {
	return func(v *JWTVerifier) {
		v.revoked = fn
	}
}

// NewJWTVerifier constructs a verifier for the given shared secret.
func NewJWTVerifier(secret []byte, issuer, audience string, opts ...VerifierOption) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: verifier secret is required")
	}
	issuer = strings.TrimSpace(issuer)
	audience = strings.TrimSpace(audience)
	if issuer == "" || audience == "" {
		return nil, errors.New("auth: verifier issuer and audience are required")
	}
	v := &JWTVerifier{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		leeway:   5 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
		jwt.WithLeeway(v.leeway),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v, nil
}

// Verify parses and validates the credential, classifying every failure.
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (Claims, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Claims{}, verifyErr(VerifyMissingCredential, nil)
	}

	claims := &bearerClaims{}
	token, err := v.parser.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Claims{}, verifyErr(classifyJWTError(err), err)
	}
	if !token.Valid {
		return Claims{}, verifyErr(VerifyInvalidSignature, nil)
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, verifyErr(VerifyMissingSubject, nil)
	}
	now := v.now()
	if claims.AuthTime != nil && claims.AuthTime.Time.After(now.Add(v.leeway)) {
		return Claims{}, verifyErr(VerifyFutureAuthTime, nil)
	}
	if v.revoked != nil && claims.ID != "" && v.revoked(claims.ID) {
		return Claims{}, verifyErr(VerifyRevoked, nil)
	}

	out := Claims{
		Subject: claims.Subject,
		Email:   strings.ToLower(strings.TrimSpace(claims.Email)),
		Issuer:  claims.Issuer,
		TokenID: claims.ID,
	}
	if len(claims.Audience) > 0 {
		out.Audience = claims.Audience[0]
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.Expiry = claims.ExpiresAt.Time
	}
	if claims.AuthTime != nil {
		out.AuthTime = claims.AuthTime.Time
	}
	return out, nil
}

func classifyJWTError(err error) VerifyKind {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return VerifyExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return VerifyInvalidSignature
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return VerifyWrongAudience
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return VerifyWrongIssuer
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued), errors.Is(err, jwt.ErrTokenNotValidYet):
		return VerifyFutureAuthTime
	default:
		return VerifyMalformedCredential
	}
}

// MemoryRevocations is a concurrency-safe revoked token id set.
type MemoryRevocations struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{ids: make(map[string]struct{})}
}

// Revoke marks a token id as revoked.
func (r *MemoryRevocations) Revoke(tokenID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[tokenID] = struct{}{}
}

// Revoked reports whether the token id has been revoked.
func (r *MemoryRevocations) Revoked(tokenID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ids[tokenID]
	return ok
}
