package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Token types carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

const minHMACSecret = 32

var (
	// ErrExpired means the signature verified but the token is past exp.
	ErrExpired = errors.New("token expired")
	// ErrInvalid covers every other verification failure.
	ErrInvalid = errors.New("token invalid")
)

// Config configures a Manager.
//
// HS256 signs access and refresh tokens with different secrets so one kind
// can never be replayed as the other. Ed25519 uses one key pair and relies
// on the typ claim.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod

	AccessSecret  []byte
	RefreshSecret []byte

	PrivateKey []byte
	PublicKey  []byte

	Issuer   string
	Audience string
	Leeway   time.Duration

	// Now overrides the clock for issuance and validation.
	Now func() time.Time
}

// Manager mints and verifies access and refresh tokens.
type Manager struct {
	config     Config
	method     jwt.SigningMethod
	accessKey  any
	refreshKey any
	verifyAcc  any
	verifyRef  any
}

// AccessClaims identify the account and carry its role.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the account id.
type RefreshClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// Pair is a freshly minted access and refresh token.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Manager{config: cfg}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.AccessSecret) < minHMACSecret || len(cfg.RefreshSecret) < minHMACSecret {
			return nil, fmt.Errorf("hs256 secrets must be at least %d bytes", minHMACSecret)
		}
		if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
			return nil, errors.New("access and refresh secrets must differ")
		}
		m.method = jwt.SigningMethodHS256
		m.accessKey, m.verifyAcc = cfg.AccessSecret, cfg.AccessSecret
		m.refreshKey, m.verifyRef = cfg.RefreshSecret, cfg.RefreshSecret
	case MethodEd25519:
		priv, err := parseEdPrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		pub := priv.Public().(ed25519.PublicKey)
		if len(cfg.PublicKey) > 0 {
			if pub, err = parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		m.method = jwt.SigningMethodEdDSA
		m.accessKey, m.refreshKey = priv, priv
		m.verifyAcc, m.verifyRef = pub, pub
	default:
		return nil, errors.New("unsupported signing method")
	}
	return m, nil
}

// AccessTTL returns the access token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.config.AccessTTL }

// RefreshTTL returns the refresh token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.config.RefreshTTL }

// Issue mints an access/refresh pair for one account.
func (m *Manager) Issue(subject, email, role string) (*Pair, error) {
	now := m.config.Now()
	accessExp := now.Add(m.config.AccessTTL)
	refreshExp := now.Add(m.config.RefreshTTL)

	access := AccessClaims{
		Email:            email,
		Role:             role,
		Type:             TypeAccess,
		RegisteredClaims: m.registered(subject, now, accessExp),
	}
	accessToken, err := jwt.NewWithClaims(m.method, access).SignedString(m.accessKey)
	if err != nil {
		return nil, err
	}

	refresh := RefreshClaims{
		Type:             TypeRefresh,
		RegisteredClaims: m.registered(subject, now, refreshExp),
	}
	refreshToken, err := jwt.NewWithClaims(m.method, refresh).SignedString(m.refreshKey)
	if err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (m *Manager) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	if m.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{m.config.Audience}
	}
	return rc
}

// ParseAccess verifies an access token.
func (m *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenStr, claims, m.verifyAcc); err != nil {
		return nil, err
	}
	if claims.Type != TypeAccess || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token.
func (m *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.parse(tokenStr, claims, m.verifyRef); err != nil {
		return nil, err
	}
	if claims.Type != TypeRefresh || claims.Subject == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

func (m *Manager) parse(tokenStr string, claims jwt.Claims, key any) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !token.Valid {
		return ErrInvalid
	}
	return nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
