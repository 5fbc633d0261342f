package testutil

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// PoseStream is a TCP server that plays the Locator's pose stream.
type PoseStream struct {
	T    *testing.T
	Host string
	Port int

	listener net.Listener
	conns    chan net.Conn
	mu       sync.Mutex
	current  net.Conn
}

// StartPoseStream listens on a free loopback port.
func StartPoseStream(t *testing.T) *PoseStream {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().(*net.TCPAddr)

	ps := &PoseStream{T: t, Host: addr.IP.String(), Port: addr.Port, listener: l, conns: make(chan net.Conn, 8)}
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			ps.conns <- c
		}
	}()

	t.Cleanup(func() {
		l.Close()
		ps.DropClient()
	})
	return ps
}

// Addr returns host:port of the stream.
func (p *PoseStream) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// WaitForClient blocks until a client connects.
func (p *PoseStream) WaitForClient(timeout time.Duration) {
	p.T.Helper()
	select {
	case c := <-p.conns:
		p.mu.Lock()
		if p.current != nil {
			p.current.Close()
		}
		p.current = c
		p.mu.Unlock()
	case <-time.After(timeout):
		require.Fail(p.T, "No client connected to pose stream")
	}
}

// Send writes raw bytes to the connected client.
func (p *PoseStream) Send(data []byte) {
	p.T.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotNil(p.T, p.current, "No client connected - call WaitForClient first")
	_, err := p.current.Write(data)
	require.NoError(p.T, err)
}

// DropClient closes the current client connection.
func (p *PoseStream) DropClient() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Close()
		p.current = nil
	}
}

// RPCCall is one JSON-RPC request received by FakeLocator.
type RPCCall struct {
	ID     int64
	Method string
	Query  map[string]any
}

// FakeLocator answers sessionLogin, clientLocalizationSetSeed and sessionLogout.
type FakeLocator struct {
	T      *testing.T
	Server *httptest.Server

	mu           sync.Mutex
	calls        []RPCCall
	loginFails   bool
	setSeedCode  int
	logoutCode   int
	sessionCount int
}

// StartFakeLocator starts the JSON-RPC endpoint.
func StartFakeLocator(t *testing.T) *FakeLocator {
	t.Helper()
	f := &FakeLocator{T: t}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// HostPort returns the endpoint host and port.
func (f *FakeLocator) HostPort() (string, int) {
	u, err := url.Parse(f.Server.URL)
	require.NoError(f.T, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(f.T, err)
	return u.Hostname(), port
}

// FailLogin makes every login return an empty session id.
func (f *FakeLocator) FailLogin(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginFails = fail
}

// SetSeedResponse sets the responseCode returned by clientLocalizationSetSeed.
func (f *FakeLocator) SetSeedResponse(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setSeedCode = code
}

// LogoutResponse sets the responseCode returned by sessionLogout.
func (f *FakeLocator) LogoutResponse(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCode = code
}

// Calls returns a copy of all recorded calls.
func (f *FakeLocator) Calls() []RPCCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]RPCCall, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns recorded calls of one method.
func (f *FakeLocator) CallsTo(method string) []RPCCall {
	var out []RPCCall
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *FakeLocator) handle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID      int64  `json:"id"`
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  struct {
			Query map[string]any `json:"query"`
		} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls = append(f.calls, RPCCall{ID: req.ID, Method: req.Method, Query: req.Params.Query})
	var response map[string]any
	switch req.Method {
	case "sessionLogin":
		if f.loginFails {
			response = map[string]any{"sessionId": "", "responseCode": 1}
		} else {
			f.sessionCount++
			response = map[string]any{"sessionId": "session-" + strconv.Itoa(f.sessionCount), "responseCode": 0}
		}
	case "clientLocalizationSetSeed":
		response = map[string]any{"responseCode": f.setSeedCode}
	case "sessionLogout":
		response = map[string]any{"responseCode": f.logoutCode}
	default:
		f.mu.Unlock()
		writeJSON(w, map[string]any{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]any{"code": -32601, "message": "Method not found"},
		})
		return
	}
	f.mu.Unlock()

	writeJSON(w, map[string]any{
		"jsonrpc": "2.0",
		"id":      req.ID,
		"result":  map[string]any{"response": response},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
