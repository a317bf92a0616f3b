package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"

	"github.com/loadxpress/loadxpress/internal/logger"
)

const (
	// DefaultResellerBaseURL is the upstream VTU platform.
	DefaultResellerBaseURL = "https://www.cheapdatahub.ng"

	airtimePath = "/api/v1/resellers/airtime/purchase/"
	dataPath    = "/api/v1/resellers/data/purchase/"

	resellerTimeout = 10 * time.Second

	// recipientRegion is the dialing region recipients are parsed
	// against.
	recipientRegion = "NG"
)

// ErrPurchaseFailed is the only error the reseller client surfaces for
// a declined or errored purchase. Upstream decline reasons are logged,
// never returned.
var ErrPurchaseFailed = goerrors.New("purchase could not be completed", goerrors.CategoryOperation).
	WithTextCode("PURCHASE_FAILED")

// ErrInvalidRecipient rejects phone numbers that do not parse as a
// valid mobile number for the dialing region.
var ErrInvalidRecipient = goerrors.New("invalid recipient phone number", goerrors.CategoryValidation).
	WithTextCode("INVALID_RECIPIENT").
	WithCode(goerrors.CodeBadRequest)

// Reseller places airtime and data orders against the upstream
// platform.
type Reseller interface {
	BuyAirtime(ctx context.Context, phoneNumber string, amount int64, providerID int) error
	BuyData(ctx context.Context, phoneNumber string, bundleID int) error
}

// ResellerClient is the HTTP client for the upstream VTU platform.
type ResellerClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     logger.Logger
}

// ResellerOption customizes the client.
type ResellerOption func(*ResellerClient)

// WithResellerHTTPClient overrides the HTTP client, mostly for tests.
func WithResellerHTTPClient(client *http.Client) ResellerOption {
	return func(r *ResellerClient) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithResellerLogger overrides the logger.
func WithResellerLogger(log logger.Logger) ResellerOption {
	return func(r *ResellerClient) {
		if log != nil {
			r.logger = log
		}
	}
}

// NewResellerClient builds a client for the given platform URL and
// bearer token.
func NewResellerClient(baseURL, token string, opts ...ResellerOption) *ResellerClient {
	if baseURL == "" {
		baseURL = DefaultResellerBaseURL
	}

	r := &ResellerClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: resellerTimeout},
		logger:     logger.NewNop(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

var _ Reseller = (*ResellerClient)(nil)

type purchaseResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details"`
}

// BuyAirtime tops up phoneNumber with amount naira on the carrier
// identified by providerID.
func (r *ResellerClient) BuyAirtime(ctx context.Context, phoneNumber string, amount int64, providerID int) error {
	payload := map[string]any{
		"provider_id":  providerID,
		"phone_number": phoneNumber,
		"amount":       amount,
	}
	return r.purchase(ctx, airtimePath, payload)
}

// BuyData delivers the bundle identified by bundleID to phoneNumber.
func (r *ResellerClient) BuyData(ctx context.Context, phoneNumber string, bundleID int) error {
	payload := map[string]any{
		"bundle_id":    bundleID,
		"phone_number": phoneNumber,
	}
	return r.purchase(ctx, dataPath, payload)
}

func (r *ResellerClient) purchase(ctx context.Context, path string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode purchase payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build purchase request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	res, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Error("purchase request failed", "error", err, "path", path)
		return ErrPurchaseFailed
	}
	defer res.Body.Close()

	var out purchaseResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		r.logger.Error("purchase response unreadable", "error", err, "path", path, "http_status", res.StatusCode)
		return ErrPurchaseFailed
	}

	// the platform can answer 200 with status "false" on a decline
	if res.StatusCode < 200 || res.StatusCode > 299 || out.Status == "false" {
		r.logger.Warn("purchase declined",
			"path", path,
			"http_status", res.StatusCode,
			"message", out.Message,
		)
		return ErrPurchaseFailed
	}

	return nil
}

// NormalizeRecipient parses a recipient number against the dialing
// region and returns the 11-digit local form the platform expects.
func NormalizeRecipient(raw string) (string, error) {
	parsed, err := phonenumbers.Parse(raw, recipientRegion)
	if err != nil {
		return "", ErrInvalidRecipient
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return "", ErrInvalidRecipient
	}
	return fmt.Sprintf("0%s", phonenumbers.GetNationalSignificantNumber(parsed)), nil
}
