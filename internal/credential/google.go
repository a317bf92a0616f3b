package credential

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"

	"github.com/loadxpress/loadxpress/internal/logger"
)

const (
	googleJWKSURL     = "https://www.googleapis.com/oauth2/v3/certs"
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	googleIssuer       = "https://accounts.google.com"
	googleIssuerLegacy = "accounts.google.com"
)

// ErrInvalidProviderToken covers every way an external identity token
// can fail verification: bad signature, wrong audience, expiry.
var ErrInvalidProviderToken = goerrors.New("invalid identity token", goerrors.CategoryAuth).
	WithTextCode("INVALID_PROVIDER_TOKEN").
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified rejects provider identities whose email the
// provider itself has not verified.
var ErrEmailNotVerified = goerrors.New("provider email is not verified", goerrors.CategoryAuth).
	WithTextCode("PROVIDER_EMAIL_UNVERIFIED").
	WithCode(goerrors.CodeUnauthorized)

// Profile is the identity asserted by the external provider.
type Profile struct {
	Subject       string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

// GoogleVerifier validates Google ID tokens against Google's JWKS and
// this application's registered client id.
type GoogleVerifier struct {
	clientID    string
	keyFunc     jwt.Keyfunc
	httpClient  *http.Client
	userInfoURL string
	logger      logger.Logger
}

// GoogleOption customizes the verifier, mostly for tests.
type GoogleOption func(*GoogleVerifier)

// WithGoogleKeyfunc overrides the JWKS backed key resolution.
func WithGoogleKeyfunc(kf jwt.Keyfunc) GoogleOption {
	return func(v *GoogleVerifier) {
		v.keyFunc = kf
	}
}

// WithGoogleHTTPClient overrides the client used for userinfo calls.
func WithGoogleHTTPClient(c *http.Client) GoogleOption {
	return func(v *GoogleVerifier) {
		v.httpClient = c
	}
}

// WithGoogleUserInfoURL overrides the userinfo endpoint.
func WithGoogleUserInfoURL(url string) GoogleOption {
	return func(v *GoogleVerifier) {
		v.userInfoURL = url
	}
}

// WithGoogleLogger overrides the logger.
func WithGoogleLogger(log logger.Logger) GoogleOption {
	return func(v *GoogleVerifier) {
		if log != nil {
			v.logger = log
		}
	}
}

// NewGoogleVerifier builds a verifier for the given OAuth client id.
// Unless a key function is injected it starts a background JWKS
// refresh against Google's cert endpoint.
func NewGoogleVerifier(clientID string, opts ...GoogleOption) (*GoogleVerifier, error) {
	v := &GoogleVerifier{
		clientID:    clientID,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		userInfoURL: googleUserInfoURL,
		logger:      logger.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	if v.keyFunc == nil {
		jwks, err := keyfunc.Get(googleJWKSURL, keyfunc.Options{
			RefreshErrorHandler: func(err error) {
				v.logger.Error("failed to refresh google JWK set", "error", err)
			},
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  time.Minute * 5,
			RefreshTimeout:    time.Second * 10,
			RefreshUnknownKID: true,
		})
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load google JWK set")
		}
		v.keyFunc = jwks.Keyfunc
	}

	return v, nil
}

type googleClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// VerifyIDToken checks signature, audience, expiry and issuer, and
// requires the provider to have verified the email.
func (v *GoogleVerifier) VerifyIDToken(ctx context.Context, raw string) (*Profile, error) {
	claims := &googleClaims{}

	token, err := jwt.ParseWithClaims(raw, claims, v.keyFunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidProviderToken
	}

	if claims.Issuer != googleIssuer && claims.Issuer != googleIssuerLegacy {
		return nil, ErrInvalidProviderToken
	}

	if !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &Profile{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		GivenName:     claims.GivenName,
		FamilyName:    claims.FamilyName,
		Picture:       claims.Picture,
	}, nil
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// UserInfo fetches the provider's userinfo document with an access
// token. Used when the ID token carries no profile claims.
func (v *GoogleVerifier) UserInfo(ctx context.Context, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userInfoURL, nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "userinfo request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read userinfo response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ErrInvalidProviderToken
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to decode userinfo response")
	}

	if !info.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	return &Profile{
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		Picture:       info.Picture,
	}, nil
}
