// Package client talks to a keyshare server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/Davincible/shardwallet/pkg/crypto/shamir"
)

const DefaultTimeout = 10 * time.Second

var (
	// ErrShareNotFound means the server has no share for the key.
	ErrShareNotFound = errors.New("server keyshare not found")
	// ErrNetworkTimeout means the request did not complete within the deadline.
	ErrNetworkTimeout = errors.New("keyshare server request timed out")
	// ErrRemote covers every other non-success answer from the server.
	ErrRemote = errors.New("keyshare server rejected the request")
)

type storeRequest struct {
	ServerActiveKeyshare string `json:"serverActiveKeyshare"`
	Pubkey               string `json:"pubkey,omitempty"`
}

type storeResponse struct {
	IsSuccess bool `json:"isSuccess"`
}

type fetchResponse struct {
	ServerActiveKeyshare string `json:"serverActiveKeyshare"`
}

type Config struct {
	BaseURL string
	Timeout time.Duration
	Log     *slog.Logger
}

// Client stores and fetches the server share. Nothing is retried.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        *slog.Logger
}

func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid keyshare server url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid keyshare server url %q: scheme must be http or https", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = timeout

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		log:        log,
	}, nil
}

// Store submits a share under pubkeyHex. A later Store for the same key
// replaces the previous share.
func (c *Client) Store(ctx context.Context, pubkeyHex string, share []byte) error {
	body, err := json.Marshal(storeRequest{
		ServerActiveKeyshare: shamir.Share{Data: share}.Hex(),
		Pubkey:               pubkeyHex,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(nil), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError("store", err)
	}
	defer resp.Body.Close()

	var out storeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&out); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("%w: unreadable response: %v", ErrRemote, err)
	}
	if resp.StatusCode != http.StatusOK || !out.IsSuccess {
		return fmt.Errorf("%w: status %d", ErrRemote, resp.StatusCode)
	}

	c.log.Debug("stored server keyshare", "pubkey", pubkeyHex)
	return nil
}

// Fetch returns the share stored under pubkeyHex.
func (c *Client) Fetch(ctx context.Context, pubkeyHex string) ([]byte, error) {
	q := url.Values{}
	if pubkeyHex != "" {
		q.Set("pubkey", pubkeyHex)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(q), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError("fetch", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrShareNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrRemote, resp.StatusCode)
	}

	var out fetchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: unreadable response: %v", ErrRemote, err)
	}
	if out.ServerActiveKeyshare == "" {
		return nil, ErrShareNotFound
	}

	share, err := shamir.DecodeHex(out.ServerActiveKeyshare)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	return share.Data, nil
}

func (c *Client) endpoint(q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/keyshare"
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) transportError(op string, err error) error {
	c.log.Warn("keyshare server request failed", "op", op, "err", err)
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
	}
	return fmt.Errorf("keyshare %s failed: %w", op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
