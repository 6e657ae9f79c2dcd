package httpclient

import "net/http"

// AuthType identifies the authentication method.
type AuthType int

const (
	// AuthNone disables authentication.
	AuthNone AuthType = iota
	// AuthBearer uses Bearer token authentication.
	AuthBearer
	// AuthHeaders sets a fixed group of credential headers.
	AuthHeaders
	// AuthSigner computes request-specific signature headers.
	AuthSigner
)

// SignFunc signs a fully built request. body is the encoded payload the
// request will carry (nil for empty bodies).
type SignFunc func(req *http.Request, body []byte) error

// AuthConfig configures request authentication.
type AuthConfig struct {
	Type AuthType
	// Token is the bearer token (AuthBearer).
	Token string
	// Headers are the credential headers (AuthHeaders).
	Headers map[string]string
	// Sign is the signing hook (AuthSigner).
	Sign SignFunc
}

// BearerAuth creates a bearer token auth config.
func BearerAuth(token string) *AuthConfig {
	return &AuthConfig{Type: AuthBearer, Token: token}
}

// HeaderAuth creates an auth config that sets the given headers.
func HeaderAuth(headers map[string]string) *AuthConfig {
	return &AuthConfig{Type: AuthHeaders, Headers: headers}
}

// SignerAuth creates an auth config backed by a signing function.
func SignerAuth(fn SignFunc) *AuthConfig {
	return &AuthConfig{Type: AuthSigner, Sign: fn}
}

func (a *AuthConfig) apply(req *http.Request, body []byte) error {
	if a == nil {
		return nil
	}
	switch a.Type {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case AuthHeaders:
		for k, v := range a.Headers {
			req.Header.Set(k, v)
		}
	case AuthSigner:
		if a.Sign != nil {
			return a.Sign(req, body)
		}
	}
	return nil
}
