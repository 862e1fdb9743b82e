// Package authtoken issues and validates the signed bearer tokens that bind
// an official's wallet to a role. Roles are assigned from the configured
// allow-lists at issuance; clients cannot claim a role.
package authtoken

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"jagga/internal/platform/middleware"
	dErrors "jagga/pkg/domain-errors"
)

const issuer = "jagga"

// Claims is the JWT payload for an official.
type Claims struct {
	Wallet string `json:"wallet"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates role tokens.
type Service struct {
	signingKey     []byte
	tokenTTL       time.Duration
	officerWallets map[string]struct{}
	chiefWallets   map[string]struct{}
}

func New(signingKey []byte, officerWallets, chiefWallets []string) *Service {
	return &Service{
		signingKey:     signingKey,
		tokenTTL:       12 * time.Hour,
		officerWallets: toSet(officerWallets),
		chiefWallets:   toSet(chiefWallets),
	}
}

// RoleFor maps a wallet to its configured role. Chief wins when a wallet is
// on both lists.
func (s *Service) RoleFor(wallet string) (string, error) {
	if _, ok := s.chiefWallets[wallet]; ok {
		return middleware.RoleChief, nil
	}
	if _, ok := s.officerWallets[wallet]; ok {
		return middleware.RoleOfficer, nil
	}
	return "", dErrors.New(dErrors.CodeForbidden, "wallet is not an authorized official")
}

// Issue returns a signed token for an authorized official's wallet.
func (s *Service) Issue(wallet string) (string, error) {
	role, err := s.RoleFor(wallet)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := Claims{
		Wallet: wallet,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   wallet,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken parses and verifies a bearer token. The wallet must still be
// on the allow-list for the role the token carries; removing a wallet from
// config revokes its outstanding tokens.
func (s *Service) ValidateToken(tokenString string) (*middleware.TokenClaims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("authtoken: unexpected signing method %q", t.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("authtoken: parse token: %w", err)
	}

	currentRole, err := s.RoleFor(claims.Wallet)
	if err != nil || currentRole != claims.Role {
		return nil, fmt.Errorf("authtoken: wallet no longer holds role %q", claims.Role)
	}
	return &middleware.TokenClaims{Wallet: claims.Wallet, Role: claims.Role}, nil
}

func toSet(wallets []string) map[string]struct{} {
	set := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		set[w] = struct{}{}
	}
	return set
}
