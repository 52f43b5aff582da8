// Package token issues and verifies the platform's signed access and refresh
// tokens and owns the signing-key lifecycle.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trading-platform/authcore/internal/autherr"
)

// ErrInvalidToken is returned when a token is malformed, bears an unknown or
// out-of-grace kid, or fails signature or time validation.
var ErrInvalidToken = errors.New("invalid token")

// IssueRequest carries the identity material bound into an access token.
type IssueRequest struct {
	Subject      string
	SessionID    string
	Scopes       []string
	Roles        []string
	AccountIDs   []string
	MFASatisfied bool
}

// Service signs and verifies tokens with RS256 using the keys in a KeyStore.
type Service struct {
	keys       KeyStore
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	nowF       func() time.Time
}

// NewService returns a token Service. accessTTL must be short (minutes);
// exp−iat is fixed for every issued access token.
func NewService(keys KeyStore, issuer, audience string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		keys:       keys,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// IssueAccessToken mints a signed access token for req using the active
// signing key. Returns autherr.ErrKeyUnavailable when no key is loaded.
func (s *Service) IssueAccessToken(req IssueRequest) (signed string, expiresAt time.Time, err error) {
	key, err := s.keys.Active()
	if err != nil {
		return "", time.Time{}, autherr.ErrKeyUnavailable
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.nowF()
	expiresAt = now.Add(s.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   req.Subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID:    req.SessionID,
		Scopes:       req.Scopes,
		Roles:        req.Roles,
		AccountIDs:   req.AccountIDs,
		MFASatisfied: req.MFASatisfied,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = key.ID
	signed, err = t.SignedString(key.Private)
	return signed, expiresAt, err
}

// IssueRefreshToken mints a signed refresh token carrying the given jti,
// already registered as a family node by the rotator.
func (s *Service) IssueRefreshToken(sessionID, userID, jti string) (signed string, expiresAt time.Time, err error) {
	key, err := s.keys.Active()
	if err != nil {
		return "", time.Time{}, autherr.ErrKeyUnavailable
	}
	now := s.nowF()
	expiresAt = now.Add(s.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = key.ID
	signed, err = t.SignedString(key.Private)
	return signed, expiresAt, err
}

// VerifyAccessToken checks signature (against the key named in the token
// header, within the retirement grace window), expiry, issuer, and audience.
// A token presented at or past its expiry instant is rejected.
func (s *Service) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if err := s.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token and returns its claims. The
// caller still has to consult the rotator for lineage state; signature and
// expiry alone do not make a refresh token usable.
func (s *Service) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := s.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if err := s.checkIssuerAudience(claims.Issuer, claims.Audience); err != nil {
		return nil, err
	}
	return claims, nil
}

func (s *Service) parse(tokenString string, claims jwt.Claims) error {
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrInvalidToken
		}
		pub, err := s.keys.VerificationKey(kid)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return pub, nil
	}, jwt.WithTimeFunc(s.nowF))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return autherr.ErrExpired
		}
		return ErrInvalidToken
	}
	if !t.Valid {
		return ErrInvalidToken
	}
	return nil
}

func (s *Service) checkIssuerAudience(issuer string, audience jwt.ClaimStrings) error {
	if issuer != s.issuer {
		return ErrInvalidToken
	}
	for _, a := range audience {
		if a == s.audience {
			return nil
		}
	}
	return ErrInvalidToken
}

// Introspection is the answer to an introspection query. Inactive results
// carry no claims and no hint of why the token failed.
type Introspection struct {
	Active bool
	Claims *AccessClaims
}

// Introspect reports whether an access token is currently valid and, when it
// is, returns its claims. This is the remote verification path for services
// that do not verify signatures locally against the JWKS.
func (s *Service) Introspect(tokenString string) Introspection {
	claims, err := s.VerifyAccessToken(tokenString)
	if err != nil {
		return Introspection{}
	}
	return Introspection{Active: true, Claims: claims}
}

// RotateSigningKey generates a fresh key pair and makes it active. The
// previous key keeps verifying outstanding tokens for the store's grace
// window, so rotation is safe to run while tokens signed under the old key
// are still circulating.
func (s *Service) RotateSigningKey() error {
	key, err := GenerateSigningKey()
	if err != nil {
		return err
	}
	return s.keys.Append(key)
}

// JWKS returns the public half of every key currently valid for
// verification, so collaborating services can verify access tokens locally.
func (s *Service) JWKS() (*JWKS, error) {
	keys := s.keys.VerificationKeys()
	set := &JWKS{Keys: make([]JWK, 0, len(keys))}
	for _, k := range keys {
		jwk, err := publicJWK(k)
		if err != nil {
			return nil, err
		}
		set.Keys = append(set.Keys, *jwk)
	}
	return set, nil
}

// NewJTI returns a random 128-bit token identifier, hex-encoded.
func NewJTI() (string, error) { return generateJTI() }

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
