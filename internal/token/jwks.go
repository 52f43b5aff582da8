package token

import (
	"encoding/base64"
	"fmt"
	"math/big"
)

// JWKS is a JSON Web Key Set.
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK is the public representation of one signing key.
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

func publicJWK(k *SigningKey) (*JWK, error) {
	if k == nil || k.Private == nil {
		return nil, fmt.Errorf("jwks: nil key")
	}
	pub := &k.Private.PublicKey
	return &JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: k.ID,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}, nil
}
