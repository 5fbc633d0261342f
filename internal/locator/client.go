// Package locator talks to the Locator's JSON-RPC 2.0 interface.
package locator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config describes the JSON-RPC endpoint and credentials.
type Config struct {
	Host           string
	Port           int
	UserName       string
	Password       string
	SessionTimeout time.Duration
	RequestTimeout time.Duration
}

// Seed is a pose to hand to the Locator as its localization seed.
type Seed struct {
	X         float64
	Y         float64
	Yaw       float64
	Enforce   bool
	Uncertain bool
}

// RPCError is a JSON-RPC error object or a nonzero responseCode.
type RPCError struct {
	Method  string
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s failed (code %d): %s", e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("%s failed (code %d)", e.Method, e.Code)
}

// Client is a JSON-RPC client for the Locator. It is safe for concurrent use.
type Client struct {
	url    string
	cfg    Config
	http   *http.Client
	nextID atomic.Int64
	log    *zap.SugaredLogger
}

// NewClient creates a client for cfg.
func NewClient(cfg Config, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{
		url:  "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.RequestTimeout},
		log:  log,
	}
}

type request struct {
	ID      int64  `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  params `json:"params"`
}

type params struct {
	Query any `json:"query"`
}

type response struct {
	ID     int64 `json:"id"`
	Result *struct {
		Response json.RawMessage `json:"response"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type timeoutQuery struct {
	Valid      bool  `json:"valid"`
	Time       int64 `json:"time"`
	Resolution int   `json:"resolution"`
}

type loginQuery struct {
	Timeout  timeoutQuery `json:"timeout"`
	UserName string       `json:"userName"`
	Password string       `json:"password"`
}

type seedPose struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	A float64 `json:"a"`
}

type setSeedQuery struct {
	SessionID     string   `json:"sessionId"`
	EnforceSeed   bool     `json:"enforceSeed"`
	UncertainSeed bool     `json:"uncertainSeed"`
	SeedPose      seedPose `json:"seedPose"`
}

type sessionQuery struct {
	SessionID string `json:"sessionId"`
}

// SessionLogin opens a session and returns its id.
func (c *Client) SessionLogin(ctx context.Context) (string, error) {
	query := loginQuery{
		Timeout:  timeoutQuery{Valid: true, Time: int64(c.cfg.SessionTimeout / time.Second), Resolution: 1},
		UserName: c.cfg.UserName,
		Password: c.cfg.Password,
	}
	var resp struct {
		SessionID    string `json:"sessionId"`
		ResponseCode *int   `json:"responseCode"`
	}
	if err := c.call(ctx, "sessionLogin", query, &resp); err != nil {
		return "", err
	}
	if resp.ResponseCode != nil && *resp.ResponseCode != 0 {
		return "", &RPCError{Method: "sessionLogin", Code: *resp.ResponseCode}
	}
	if resp.SessionID == "" {
		return "", &RPCError{Method: "sessionLogin", Message: "empty session id"}
	}
	return resp.SessionID, nil
}

// ClientLocalizationSetSeed sets the localization seed within a session.
func (c *Client) ClientLocalizationSetSeed(ctx context.Context, sessionID string, seed Seed) error {
	query := setSeedQuery{
		SessionID:     sessionID,
		EnforceSeed:   seed.Enforce,
		UncertainSeed: seed.Uncertain,
		SeedPose:      seedPose{X: seed.X, Y: seed.Y, A: seed.Yaw},
	}
	return c.callWithCode(ctx, "clientLocalizationSetSeed", query)
}

// SessionLogout closes a session.
func (c *Client) SessionLogout(ctx context.Context, sessionID string) error {
	return c.callWithCode(ctx, "sessionLogout", sessionQuery{SessionID: sessionID})
}

// SetSeed logs in, sets the seed and logs out. The logout is attempted even
// if setting the seed fails. A failed logout is logged and does not fail the
// call, since the seed has already been applied or refused by then.
func (c *Client) SetSeed(ctx context.Context, seed Seed) error {
	sessionID, err := c.SessionLogin(ctx)
	if err != nil {
		return err
	}
	err = c.ClientLocalizationSetSeed(ctx, sessionID, seed)
	if lerr := c.SessionLogout(ctx, sessionID); lerr != nil {
		c.log.Warnw("Locator logout failed", "session", sessionID, "err", lerr)
	}
	return err
}

func (c *Client) callWithCode(ctx context.Context, method string, query any) error {
	var resp struct {
		ResponseCode *int `json:"responseCode"`
	}
	if err := c.call(ctx, method, query, &resp); err != nil {
		return err
	}
	if resp.ResponseCode == nil {
		return &RPCError{Method: method, Code: -1, Message: "missing responseCode"}
	}
	if *resp.ResponseCode != 0 {
		return &RPCError{Method: method, Code: *resp.ResponseCode}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, query any, out any) error {
	req := request{
		ID:      c.nextID.Add(1),
		JSONRPC: "2.0",
		Method:  method,
		Params:  params{Query: query},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return fmt.Errorf("%s request failed: HTTP %d: %s", method, httpResp.StatusCode, bytes.TrimSpace(msg))
	}

	var resp response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if resp.Error != nil {
		return &RPCError{Method: method, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if resp.Result == nil {
		return &RPCError{Method: method, Code: -1, Message: "missing result"}
	}
	if resp.ID != req.ID {
		c.log.Warnw("JSON-RPC response id mismatch", "method", method, "want", req.ID, "got", resp.ID)
	}
	if err := json.Unmarshal(resp.Result.Response, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
