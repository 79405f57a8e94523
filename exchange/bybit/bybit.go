// Package bybit implements the core.Exchange interface against the
// Bybit v5 REST API.
package bybit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/raykavin/launchwatch/core"
)

const (
	mainnetBaseURL = "https://api.bybit.com"
	testnetBaseURL = "https://api-testnet.bybit.com"

	recvWindow     = "5000"
	categoryLinear = "linear"

	defaultHTTPTimeout = 10 * time.Second
)

// Bybit API error codes treated specially
const (
	codeLeverageNotModified = 110043
	codeInsufficientBalance = 110007
	codeRateLimit           = 10006
	codeServerTimeout       = 10016
)

// APIError is a non-zero retCode response from the Bybit API
type APIError struct {
	Code int
	Msg  string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("bybit api error %d: %s", e.Code, e.Msg)
}

// Temporary reports whether the error is worth retrying
func (e *APIError) Temporary() bool {
	return e.Code == codeRateLimit || e.Code == codeServerTimeout
}

// Config holds configuration parameters for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool

	// CustomBaseURL overrides the endpoint selection, used in tests
	CustomBaseURL string

	HTTPTimeout time.Duration
}

// Exchange is a Bybit v5 REST client implementing core.Exchange
type Exchange struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	log        core.Logger

	mu         sync.Mutex
	assetsInfo map[string]core.AssetInfo
}

// NewExchange creates a Bybit client. The testnet/live selection is a
// configuration concern, callers never branch on it.
func NewExchange(cfg Config, log core.Logger) *Exchange {
	baseURL := mainnetBaseURL
	if cfg.Testnet {
		baseURL = testnetBaseURL
	}
	if cfg.CustomBaseURL != "" {
		baseURL = cfg.CustomBaseURL
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &Exchange{
		cfg:        cfg,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		assetsInfo: make(map[string]core.AssetInfo),
	}
}

// sign creates the request signature for the Bybit v5 API
func (e *Exchange) sign(timestamp, payload string) string {
	message := timestamp + e.cfg.APIKey + recvWindow + payload
	h := hmac.New(sha256.New, []byte(e.cfg.APISecret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// apiResponse is the common Bybit v5 response envelope
type apiResponse struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// doRequest performs an HTTP request against the Bybit API, signing it
// when required, and unwraps the response envelope
func (e *Exchange) doRequest(ctx context.Context, method, endpoint string, params map[string]string, signed bool) (json.RawMessage, error) {
	var payload, reqURL string

	if method == http.MethodGet {
		query := url.Values{}
		for k, v := range params {
			query.Set(k, v)
		}
		payload = query.Encode()
		reqURL = e.baseURL + endpoint
		if payload != "" {
			reqURL += "?" + payload
		}
	} else {
		reqURL = e.baseURL + endpoint
		if len(params) > 0 {
			body, err := json.Marshal(params)
			if err != nil {
				return nil, fmt.Errorf("failed to encode request body: %w", err)
			}
			payload = string(body)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, strings.NewReader(bodyFor(method, payload)))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if signed {
		timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
		req.Header.Set("X-BAPI-API-KEY", e.cfg.APIKey)
		req.Header.Set("X-BAPI-SIGN", e.sign(timestamp, payload))
		req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
		req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", endpoint, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}

	if envelope.RetCode != 0 {
		return nil, &APIError{Code: envelope.RetCode, Msg: envelope.RetMsg}
	}

	return envelope.Result, nil
}

// bodyFor returns the request body, GET requests carry the payload in
// the URL only
func bodyFor(method, payload string) string {
	if method == http.MethodGet {
		return ""
	}
	return payload
}

// parseFloat parses Bybit's string-encoded numbers, empty means zero
func parseFloat(value string) float64 {
	if value == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(value, 64)
	return f
}
