package http

import (
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

const ErrTypeUnauthorized = "http-unauthorized"

// UserTokenClaims is the payload part of a user token.
type UserTokenClaims struct {
	AppKey    string `json:"app_key"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// TokenVerifier checks user tokens signed with an Ethereum private key. A
// token is the hex encoded claims JSON and the hex encoded signature of its
// Keccak256 hash, joined by a dot.
type TokenVerifier struct {
	allowed map[common.Address]struct{}
}

// NewTokenVerifier returns a verifier that accepts tokens signed by one of
// the given addresses. An empty allowlist disables verification, which is
// meant for local development.
func NewTokenVerifier(addresses []string) *TokenVerifier {
	allowed := make(map[common.Address]struct{}, len(addresses))
	for _, a := range addresses {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		allowed[common.HexToAddress(a)] = struct{}{}
	}

	return &TokenVerifier{allowed: allowed}
}

func (v *TokenVerifier) Verify(token string) error {
	if len(v.allowed) == 0 {
		return nil
	}

	payloadPart, sigPart, ok := strings.Cut(token, ".")
	if !ok {
		return errors.New("user token is malformed").
			WithType(ErrTypeUnauthorized)
	}

	payload, err := hex.DecodeString(payloadPart)
	if err != nil {
		return errors.New("decoding user token payload failed").
			WithType(ErrTypeUnauthorized).
			Wrap(err)
	}

	sig, err := hex.DecodeString(sigPart)
	if err != nil {
		return errors.New("decoding user token signature failed").
			WithType(ErrTypeUnauthorized).
			Wrap(err)
	}
	if len(sig) != crypto.SignatureLength {
		return errors.New("user token signature has an unexpected length").
			WithType(ErrTypeUnauthorized).
			WithTag("signature_length", len(sig))
	}

	var claims UserTokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return errors.New("unmarshaling user token claims failed").
			WithType(ErrTypeUnauthorized).
			Wrap(err)
	}
	if claims.ExpiresAt != 0 && time.Now().Unix() > claims.ExpiresAt {
		return errors.New("user token is expired").
			WithType(ErrTypeUnauthorized).
			WithTag("expires_at", claims.ExpiresAt)
	}

	// Signatures produced by wallets carry a 27 based recovery id.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(crypto.Keccak256(payload), sig)
	if err != nil {
		return errors.New("recovering user token signer failed").
			WithType(ErrTypeUnauthorized).
			Wrap(err)
	}

	if _, ok := v.allowed[crypto.PubkeyToAddress(*pub)]; !ok {
		return errors.New("user token signer is not allowed").
			WithType(ErrTypeUnauthorized)
	}

	return nil
}

// VerifyAuthToken returns a websocket handshake function that rejects
// connections carrying an invalid user token.
func VerifyAuthToken(verifier *TokenVerifier) func(*websocket.Config, *http.Request) error {
	return func(c *websocket.Config, r *http.Request) error {
		token := GetUserTokenFromHTTPRequest(r)

		if err := verifier.Verify(token); err != nil {
			logs.WithTag("client_id", r.Header.Get(HeaderClientID)).Error(err)
			return err
		}

		return nil
	}
}

func VerifyAuthTokenHandler(verifier *TokenVerifier, next http.HandlerFunc) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		token := GetUserTokenFromHTTPRequest(r)

		if err := verifier.Verify(token); err != nil {
			logs.WithTag("client_id", r.Header.Get(HeaderClientID)).Error(err)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	}
}

// MakeUserToken signs the given claims with the private key. It is used by
// tests and local tooling.
func MakeUserToken(claims UserTokenClaims, privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", errors.New("parsing private key failed").Wrap(err)
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", errors.New("marshaling user token claims failed").Wrap(err)
	}

	sig, err := crypto.Sign(crypto.Keccak256(payload), key)
	if err != nil {
		return "", errors.New("signing user token failed").Wrap(err)
	}

	return hex.EncodeToString(payload) + "." + hex.EncodeToString(sig), nil
}
