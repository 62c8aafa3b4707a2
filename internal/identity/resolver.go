package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JeevanLal1/ProChat/internal/config"
	"github.com/JeevanLal1/ProChat/pkg/jwt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Identity is the user bound to a connection at handshake. A zero Identity
// means the connection is anonymous.
type Identity struct {
	UserID   string
	Username string
}

func (i Identity) IsAnonymous() bool {
	return i.UserID == ""
}

// Resolver extracts the caller's identity from an upgrade request. Missing
// credentials yield a zero Identity; present but invalid credentials yield
// ErrInvalidCredentials.
type Resolver interface {
	Resolve(r *http.Request) (Identity, error)
}

// New builds the resolver selected by cfg.Mode.
func New(cfg config.IdentityConfig) (Resolver, error) {
	switch cfg.Mode {
	case "", config.IdentityModeQuery:
		return QueryResolver{}, nil
	case config.IdentityModeJWT:
		m, err := jwt.NewManager(cfg.JWTSecret, 0, cfg.Issuer)
		if err != nil {
			return nil, fmt.Errorf("jwt identity: %w", err)
		}
		return NewJWTResolver(m), nil
	default:
		return nil, fmt.Errorf("unknown identity mode: %s", cfg.Mode)
	}
}

// QueryResolver trusts ?userId=&name= set by an upstream that already
// authenticated the user.
type QueryResolver struct{}

func (QueryResolver) Resolve(r *http.Request) (Identity, error) {
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("userId"))
	if userID == "" {
		userID = strings.TrimSpace(q.Get("user_id"))
	}
	return Identity{UserID: userID, Username: q.Get("name")}, nil
}

// JWTResolver verifies an access token passed as ?token= or as a bearer
// Authorization header.
type JWTResolver struct {
	manager *jwt.Manager
}

func NewJWTResolver(m *jwt.Manager) *JWTResolver {
	return &JWTResolver{manager: m}
}

func (j *JWTResolver) Resolve(r *http.Request) (Identity, error) {
	token := tokenFrom(r)
	if token == "" {
		return Identity{}, nil
	}

	claims, err := j.manager.ValidateToken(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}

func tokenFrom(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
