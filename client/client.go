package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/pinjaman/hybrid"
	"github.com/pinjaman/hybrid/internal/domain"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "pinjaman-client/1.0"
)

// Client talks to the pinjaman server. Writes are never retried here: a
// retry of a bank-details submission needs a fresh draft id.
type Client struct {
	client   *http.Client
	cache    *cache.Cache
	endpoint string
	token    string
}

func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := http.Client{
		Timeout: timeout,
	}
	c := &Client{
		client:   &httpClient,
		cache:    cache.New(30*time.Second, time.Minute),
		endpoint: strings.TrimRight(endpoint, "/"),
	}
	httpClient.Transport = c
	return c
}

// SetViewerToken attaches a wallet-signed viewer token to every request.
func (c *Client) SetViewerToken(token string) {
	c.token = token
}

func (c *Client) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", userAgent)
	return http.DefaultTransport.RoundTrip(req)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// do sends one request. ambiguous marks writes whose outcome is unknown when
// the server does not answer in time.
func (c *Client) do(ctx context.Context, method, path string, body any, ambiguous bool, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.GatewayUnavailableError{
			Gateway:   "draft store",
			Ambiguous: ambiguous && isTimeout(err),
			Err:       err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

// decodeError turns an error body back into a typed error when the server
// names a known kind.
func decodeError(resp *http.Response) error {
	var body pinjaman.SubmitResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}

	if typed := domain.ErrorFromKind(body.Kind, body.Error); typed != nil {
		return typed
	}
	if resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusGatewayTimeout {
		return domain.GatewayUnavailableError{Gateway: "draft store", Err: errors.New(body.Error)}
	}
	return fmt.Errorf("draft store responded %d: %s", resp.StatusCode, body.Error)
}

func (c *Client) SubmitBankDetails(ctx context.Context, submission pinjaman.BankDetailsSubmission) error {
	var resp pinjaman.SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/api/bank-details", submission, true, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("draft store did not confirm the submission")
	}
	return nil
}

func (c *Client) SaveRepayReference(ctx context.Context, ref domain.RepayReference) error {
	return c.do(ctx, http.MethodPost, "/api/repay-references", ref, true, nil)
}

func (c *Client) AttachRepayTx(ctx context.Context, hash, txHash string) error {
	body := struct {
		TxHash string `json:"txHash"`
	}{TxHash: txHash}
	return c.do(ctx, http.MethodPatch, "/api/repay-references/"+url.PathEscape(hash), body, true, nil)
}

func (c *Client) GetRates(ctx context.Context) (domain.Rates, error) {
	if x, found := c.cache.Get("rates"); found {
		return x.(domain.Rates), nil
	}
	var rates domain.Rates
	if err := c.do(ctx, http.MethodGet, "/api/public/rates", nil, false, &rates); err != nil {
		return domain.Rates{}, err
	}
	c.cache.Set("rates", rates, cache.DefaultExpiration)
	return rates, nil
}

func (c *Client) ListPositions(ctx context.Context, owner string) ([]domain.PositionSummary, error) {
	var positions []domain.PositionSummary
	err := c.do(ctx, http.MethodGet, "/api/positions?owner="+url.QueryEscape(owner), nil, false, &positions)
	return positions, err
}

func (c *Client) GetPosition(ctx context.Context, positionID uint64) (domain.PositionView, error) {
	var view domain.PositionView
	err := c.do(ctx, http.MethodGet, "/api/positions/"+strconv.FormatUint(positionID, 10), nil, false, &view)
	return view, err
}

// GetBankDetails needs a viewer token of the wallet that signed the draft.
func (c *Client) GetBankDetails(ctx context.Context, draftID string) (domain.BankDetails, error) {
	var draft domain.BankDetails
	err := c.do(ctx, http.MethodGet, "/api/bank-details/"+url.PathEscape(draftID), nil, false, &draft)
	return draft, err
}
