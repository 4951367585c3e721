package bakong

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog/log"

	"coffeeshop/internal/config"
	"coffeeshop/internal/domain"
)

// DefaultTimeout bounds a single lookup against the payment switch.
const DefaultTimeout = 30 * time.Second

// SynthesizedIDPrefix marks transaction ids generated locally because the switch returned none.
// Such ids are not bank references.
const SynthesizedIDPrefix = "UNVERIFIED-BKG-"

// responseCodeSuccess is the switch's code for a found transaction.
const responseCodeSuccess = 0

// errorCodeNotFound is the switch's error code for an unknown hash.
const errorCodeNotFound = 1

const maxErrorBody = 100

// Client looks up settlement status by KHQR content hash.
type Client struct {
	apiURL     string
	token      string
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithClock overrides time.Now, used when synthesizing transaction ids.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient creates a Client from the Bakong configuration.
func NewClient(cfg config.BakongConfig, opts ...Option) *Client {
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		apiURL:  strings.TrimSpace(cfg.APIURL),
		token:   strings.TrimSpace(cfg.Token),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: newrelic.NewRoundTripper(http.DefaultTransport),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the endpoint and credential are present.
func (c *Client) Configured() bool {
	return c.apiURL != "" && c.token != ""
}

// checkRequest is the lookup body.
type checkRequest struct {
	MD5 string `json:"md5"`
}

// checkResponse is the switch's envelope.
type checkResponse struct {
	ResponseCode    *int        `json:"responseCode"`
	ResponseMessage string      `json:"responseMessage"`
	ErrorCode       *int        `json:"errorCode"`
	Data            *settlement `json:"data"`
}

// settlement is the transaction record returned for a settled payment.
type settlement struct {
	Hash               string  `json:"hash"`
	TransactionID      string  `json:"transactionId"`
	ExternalRef        string  `json:"externalRef"`
	FromAccountID      string  `json:"fromAccountId"`
	ToAccountID        string  `json:"toAccountId"`
	Currency           string  `json:"currency"`
	Amount             float64 `json:"amount"`
	Description        string  `json:"description"`
	CreatedDateMs      int64   `json:"createdDateMs"`
	AcknowledgedDateMs int64   `json:"acknowledgedDateMs"`
}

// Verify asks the switch whether the payment identified by contentHash has settled.
// The only error returned is domain.ErrConfiguration; every other failure is an Error outcome.
func (c *Client) Verify(ctx context.Context, contentHash string) (domain.VerificationOutcome, error) {
	if !c.Configured() {
		var missing []string
		if c.apiURL == "" {
			missing = append(missing, "BAKONG_API_URL")
		}
		if c.token == "" {
			missing = append(missing, "BAKONG_TOKEN")
		}
		return domain.VerificationOutcome{}, fmt.Errorf("%w: missing Bakong API configuration: %s", domain.ErrConfiguration, strings.Join(missing, ", "))
	}

	body, err := json.Marshal(checkRequest{MD5: contentHash})
	if err != nil {
		return domain.ErrorOutcome(err.Error()), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return domain.ErrorOutcome(fmt.Sprintf("build request: %v", err)), nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return domain.ErrorOutcome("request timed out"), nil
		}
		return domain.ErrorOutcome(fmt.Sprintf("%v: %v", domain.ErrVerificationTransport, err)), nil
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.ErrorOutcome(fmt.Sprintf("%v: read body: %v", domain.ErrVerificationTransport, err)), nil
	}

	var parsed checkResponse
	parseErr := json.Unmarshal(raw, &parsed)
	if parseErr != nil || parsed.ResponseCode == nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return domain.ErrorOutcome(fmt.Sprintf("Bakong API returned status %d: %s", resp.StatusCode, truncate(string(raw), maxErrorBody))), nil
		}
		return domain.ErrorOutcome("unparseable Bakong API response"), nil
	}

	return c.interpret(contentHash, &parsed), nil
}

// interpret normalizes a parsed switch response.
func (c *Client) interpret(contentHash string, r *checkResponse) domain.VerificationOutcome {
	if *r.ResponseCode == responseCodeSuccess && r.Data != nil {
		if id := firstNonEmpty(r.Data.Hash, r.Data.TransactionID, r.Data.ExternalRef); id != "" {
			return domain.VerifiedOutcome(id)
		}
		id := SynthesizedIDPrefix + strconv.FormatInt(c.now().UnixMilli(), 10)
		log.Warn().Str("md5", contentHash).Str("transaction_id", id).
			Msg("bakong: settlement confirmed without a transaction reference")
		return domain.VerificationOutcome{
			Status:        domain.VerificationVerified,
			TransactionID: id,
			Synthesized:   true,
		}
	}

	// Any other code, or success without a record.
	msg := r.ResponseMessage
	if (r.ErrorCode != nil && *r.ErrorCode == errorCodeNotFound) || indicatesNotSettled(msg) {
		return domain.PendingOutcome(msg)
	}
	if msg == "" {
		msg = fmt.Sprintf("Bakong API returned response code %d", *r.ResponseCode)
	}
	return domain.ErrorOutcome(msg)
}

var notSettledPhrases = []string{
	"not found",
	"could not be found",
	"not yet",
	"pending",
	"not exist",
}

func indicatesNotSettled(msg string) bool {
	msg = strings.ToLower(msg)
	for _, p := range notSettledPhrases {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
