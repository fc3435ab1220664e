package aeris

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Identity carries the authenticated principal for a request, along with
// the claims and role set an authorization policy can inspect. A nil
// *Identity means the request is anonymous.
type Identity struct {
	Scheme string
	Name   string
	Claims map[string]interface{}
	Roles  []string
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authenticator attempts to produce an Identity from a request. It returns
// (nil, nil) when it has no opinion (the next authenticator in line should
// be tried), a non-nil Identity on success, and an error — typically
// *AuthenticateChallengeError — when it recognizes but rejects the
// credential.
type Authenticator interface {
	Name() string
	Authenticate(req *Request) (*Identity, error)
}

// BearerJWTAuthenticator validates a JWT bearer token from the Authorization
// header using the HMAC secret it was constructed with.
type BearerJWTAuthenticator struct {
	Scheme string
	Secret []byte
}

func NewBearerJWTAuthenticator(secret []byte) *BearerJWTAuthenticator {
	return &BearerJWTAuthenticator{Scheme: "Bearer", Secret: secret}
}

func (a *BearerJWTAuthenticator) Name() string { return "jwt" }

func (a *BearerJWTAuthenticator) Authenticate(req *Request) (*Identity, error) {
	header := req.Header.Get("Authorization")
	if header == "" {
		return nil, nil
	}
	prefix := a.Scheme + " "
	if !strings.HasPrefix(header, prefix) {
		return nil, nil
	}
	raw := strings.TrimPrefix(header, prefix)

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		return a.Secret, nil
	})
	if err != nil || !token.Valid {
		return nil, &AuthenticateChallengeError{Scheme: a.Scheme, Realm: "aeris"}
	}

	claims, _ := token.Claims.(jwt.MapClaims)
	identity := &Identity{Scheme: a.Scheme, Claims: map[string]interface{}(claims)}
	if sub, ok := claims["sub"].(string); ok {
		identity.Name = sub
	}
	if rolesRaw, ok := claims["roles"].([]interface{}); ok {
		for _, r := range rolesRaw {
			if s, ok := r.(string); ok {
				identity.Roles = append(identity.Roles, s)
			}
		}
	}
	return identity, nil
}

// RateLimiter gates authentication attempts per client. It is backed by an
// in-process golang.org/x/time/rate limiter per key, with an optional Redis
// client for cross-process enforcement in clustered deployments.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
	redis    *redis.Client
	window   time.Duration
}

func NewRateLimiter(eventsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(eventsPerSecond),
		burst:    burst,
	}
}

// WithRedis switches the limiter to a distributed fixed-window counter
// stored in Redis, keyed per client and reset every window.
func (rl *RateLimiter) WithRedis(client *redis.Client, window time.Duration) *RateLimiter {
	rl.redis = client
	rl.window = window
	return rl
}

func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if rl.redis != nil {
		return rl.allowRedis(ctx, key)
	}
	return rl.allowLocal(key), nil
}

func (rl *RateLimiter) allowLocal(key string) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	count, err := rl.redis.Incr(ctx, "aeris:ratelimit:"+key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		rl.redis.Expire(ctx, "aeris:ratelimit:"+key, rl.window)
	}
	return count <= int64(rl.burst), nil
}

// AuthenticationMiddleware tries each Authenticator in order, stopping at
// the first one that produces an Identity. A rejected credential short
// circuits the chain with its *AuthenticateChallengeError mapped to 401. A
// RateLimiter, when set, is checked before any authenticator runs and maps
// an exceeded limit to *RateLimitExceededError (429).
type AuthenticationMiddleware struct {
	Authenticators []Authenticator
	RateLimiter    *RateLimiter
	KeyFunc        func(req *Request) string
}

func (m *AuthenticationMiddleware) Handle(req *Request, next Handler) (*Response, error) {
	if m.RateLimiter != nil {
		key := req.ClientAddr
		if m.KeyFunc != nil {
			key = m.KeyFunc(req)
		}
		allowed, err := m.RateLimiter.Allow(req.Context(), key)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, &RateLimitExceededError{}
		}
	}

	for _, authn := range m.Authenticators {
		identity, err := authn.Authenticate(req)
		if err != nil {
			return nil, err
		}
		if identity != nil {
			req.Identity = identity
			break
		}
	}

	return next(req)
}

// AuthorizationPolicy decides whether an Identity (possibly nil, meaning
// anonymous) satisfies a named policy.
type AuthorizationPolicy interface {
	Name() string
	Evaluate(identity *Identity) bool
}

// RolePolicy grants access when the identity carries any of Roles.
type RolePolicy struct {
	PolicyName string
	Roles      []string
}

func (p *RolePolicy) Name() string { return p.PolicyName }

func (p *RolePolicy) Evaluate(identity *Identity) bool {
	for _, role := range p.Roles {
		if identity.HasRole(role) {
			return true
		}
	}
	return false
}

// RouteAuth declares the authorization requirements a route or handler was
// registered with (spec.md's auth/allow_anonymous/auth_policy/auth_roles
// markers). SignInPath, when set, turns an unauthenticated rejection into a
// redirect instead of a 401, for OIDC-style browser flows.
type RouteAuth struct {
	Required       bool
	AllowAnonymous bool
	Policy         string
	Roles          []string
	SignInPath     string
}

// AuthorizationMiddleware enforces a RouteAuth resolved per request by
// AuthFor against req.Identity, using the configured policies.
type AuthorizationMiddleware struct {
	Policies map[string]AuthorizationPolicy
	AuthFor  func(req *Request) *RouteAuth
}

func (m *AuthorizationMiddleware) Handle(req *Request, next Handler) (*Response, error) {
	auth := m.AuthFor(req)
	if auth == nil || auth.AllowAnonymous || !auth.Required {
		return next(req)
	}

	if req.Identity == nil {
		if auth.SignInPath != "" {
			return Redirect(302, auth.SignInPath), nil
		}
		return nil, &UnauthorizedError{}
	}

	if len(auth.Roles) > 0 {
		allowed := false
		for _, role := range auth.Roles {
			if req.Identity.HasRole(role) {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, &ForbiddenError{}
		}
	}

	if auth.Policy != "" {
		policy, ok := m.Policies[auth.Policy]
		if !ok {
			return nil, &ForbiddenError{Reason: fmt.Sprintf(
				"aeris: no policy named %q registered (have: %s)",
				auth.Policy, strings.Join(m.sortedPolicyNames(), ", "),
			)}
		}
		if !policy.Evaluate(req.Identity) {
			return nil, &ForbiddenError{}
		}
	}

	return next(req)
}

// sortedPolicyNames lists configured policy names in deterministic order,
// for the unknown-policy diagnostic in Handle.
func (m *AuthorizationMiddleware) sortedPolicyNames() []string {
	names := make([]string, 0, len(m.Policies))
	for name := range m.Policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
