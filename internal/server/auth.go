package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"extflow/internal/backend"
	"extflow/internal/domain"
)

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	// InsecureSkipVerify decodes tokens without checking the signature. Only
	// for setups where a gateway in front of the service already verified them.
	InsecureSkipVerify bool
	DevLogin           bool
	Logger             *zap.Logger
}

func (c AuthConfig) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

type actorKey struct{}

func withActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// actorFromContext returns the resolved actor. Requests without a usable token
// get the empty actor, which every policy denies.
func actorFromContext(ctx context.Context) domain.Actor {
	a, _ := ctx.Value(actorKey{}).(domain.Actor)
	return a
}

func requireUser(ctx context.Context) (domain.Actor, huma.StatusError) {
	a := actorFromContext(ctx)
	if a.UserID == "" {
		return a, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	return a, nil
}

// stringList accepts a JSON array of strings or a single string.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	UserID string     `json:"id,omitempty"`
	Roles  stringList `json:"roles,omitempty"`
	Role   string     `json:"role,omitempty"`
}

func (c *jwtClaims) actor() domain.Actor {
	a := domain.Actor{UserID: strings.TrimSpace(c.Subject)}
	if a.UserID == "" {
		a.UserID = strings.TrimSpace(c.UserID)
	}
	seen := map[domain.Role]bool{}
	for _, r := range append([]string(c.Roles), c.Role) {
		role := domain.Role(strings.ToLower(strings.TrimSpace(r)))
		if role == "" || seen[role] {
			continue
		}
		seen[role] = true
		a.Roles = append(a.Roles, role)
	}
	return a
}

func authenticateJWT(token string, cfg AuthConfig) (domain.Actor, error) {
	claims := &jwtClaims{}
	switch {
	case strings.TrimSpace(cfg.JWTSecret) != "":
		opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
		if cfg.Issuer != "" {
			opts = append(opts, jwt.WithIssuer(cfg.Issuer))
		}
		parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil {
			return domain.Actor{}, err
		}
		if !parsed.Valid {
			return domain.Actor{}, errors.New("invalid token")
		}
	case cfg.InsecureSkipVerify:
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return domain.Actor{}, err
		}
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Before(time.Now()) {
			return domain.Actor{}, errors.New("token expired")
		}
	default:
		return domain.Actor{}, errors.New("jwt secret not configured")
	}
	a := claims.actor()
	if a.UserID == "" {
		return domain.Actor{}, errors.New("subject claim required")
	}
	return a, nil
}

func signDevToken(secret, userID string, roles []string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware resolves the actor once per request. It never rejects a
// request: a missing or bad token yields the empty actor, and the token, when
// present, is forwarded to the backend untouched.
func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			if req.URL.Path == healthPath {
				next.ServeHTTP(w, req)
				return
			}
			ctx := req.Context()
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				next.ServeHTTP(w, req.WithContext(withActor(ctx, domain.Actor{})))
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				cfg.logger().Info("malformed authorization header", zap.String("path", req.URL.Path))
				next.ServeHTTP(w, req.WithContext(withActor(ctx, domain.Actor{})))
				return
			}
			ctx = backend.WithToken(ctx, token)
			actor, err := authenticateJWT(token, cfg)
			if err != nil {
				cfg.logger().Info("bearer token rejected", zap.String("path", req.URL.Path), zap.Error(err))
				actor = domain.Actor{}
			}
			next.ServeHTTP(w, req.WithContext(withActor(ctx, actor)))
		})
	}
}
