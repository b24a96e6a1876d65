package notifyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// TokenSource supplies the current session token. Returning an empty token
// or an error means there is no session to act on.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// ErrNoToken is returned when an operation needs a session token and the
// source has none.
var ErrNoToken = errors.New("no session token available")

// StatusError reports a non-2xx REST response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d", e.Code)
}

// ConnState is the websocket connection lifecycle state.
type ConnState int32

const (
	StateClosed ConnState = iota
	StateConnecting
	StateOpen
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Config wires a Transport. BaseURL and Token are required.
type Config struct {
	// BaseURL is the API origin, e.g. "http://localhost:8080".
	BaseURL string
	Token   TokenSource

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     zerolog.Logger

	// OnError observes failed operations after store rollback has run.
	OnError func(op string, err error)
	// OnNotification fires for every pushed entry, after it is stored.
	OnNotification func(Notification)
}

// Transport owns all I/O against the notification API: the REST catch-up
// and mutation calls, and the single live websocket. Every call mutates
// the Store so that callers only ever read state from one place.
type Transport struct {
	cfg    Config
	store  *Store
	base   *url.URL
	httpc  *http.Client
	dialer *websocket.Dialer
	log    zerolog.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state ConnState
}

func NewTransport(cfg Config, store *Store) (*Transport, error) {
	if cfg.Token == nil {
		return nil, errors.New("token source is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base URL scheme %q", base.Scheme)
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	return &Transport{
		cfg:    cfg,
		store:  store,
		base:   base,
		httpc:  httpc,
		dialer: dialer,
		log:    cfg.Logger,
	}, nil
}

// FetchList loads one page of history and replaces the held list with it.
func (t *Transport) FetchList(ctx context.Context, page, pageSize int) error {
	var out struct {
		Notifications []Notification `json:"notifications"`
		Total         int64          `json:"total"`
		Page          int            `json:"page"`
		PageSize      int            `json:"page_size"`
	}
	path := fmt.Sprintf("/api/v1/notifications?page=%d&page_size=%d", page, pageSize)
	if err := t.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		t.report("fetch_list", err)
		return err
	}
	t.store.SetNotifications(out.Notifications)
	return nil
}

// FetchUnreadCount loads the server-side unread counter into the store.
func (t *Transport) FetchUnreadCount(ctx context.Context) error {
	var count int
	if err := t.do(ctx, http.MethodGet, "/api/v1/notifications/unread/count", nil, &count); err != nil {
		t.report("fetch_unread_count", err)
		return err
	}
	t.store.SetUnreadCount(count)
	return nil
}

// MarkRead applies the read flag optimistically, then confirms with the
// server. On failure the local change is rolled back before returning.
func (t *Transport) MarkRead(ctx context.Context, id int64) error {
	changed := t.store.MarkRead(id)
	path := fmt.Sprintf("/api/v1/notifications/%d/read", id)
	if err := t.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		if changed {
			t.store.markUnread(id)
		}
		t.report("mark_read", err)
		return err
	}
	return nil
}

// Delete removes the entry on the server, then locally. Unlike MarkRead
// this is not optimistic: a failed delete leaves the entry in place.
func (t *Transport) Delete(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/v1/notifications/%d", id)
	if err := t.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		t.report("delete", err)
		return err
	}
	t.store.Remove(id)
	return nil
}

// Preferences fetches the complete per-type preference set.
func (t *Transport) Preferences(ctx context.Context) ([]PreferenceItem, error) {
	var out struct {
		Items []PreferenceItem `json:"items"`
	}
	if err := t.do(ctx, http.MethodGet, "/api/v1/notifications/preferences", nil, &out); err != nil {
		t.report("fetch_preferences", err)
		return nil, err
	}
	return out.Items, nil
}

// UpdatePreferences replaces the preference set and returns the saved state.
func (t *Transport) UpdatePreferences(ctx context.Context, items []PreferenceItem) ([]PreferenceItem, error) {
	body := struct {
		Items []PreferenceItem `json:"items"`
	}{Items: items}
	var out struct {
		Items []PreferenceItem `json:"items"`
	}
	if err := t.do(ctx, http.MethodPut, "/api/v1/notifications/preferences", body, &out); err != nil {
		t.report("update_preferences", err)
		return nil, err
	}
	return out.Items, nil
}

// Connect opens the live push channel, closing any previous connection
// first so at most one is ever live. The returned channel closes when the
// connection's read loop exits, however it ends.
func (t *Transport) Connect(ctx context.Context) (<-chan struct{}, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.state = StateConnecting

	token, err := t.cfg.Token.Token()
	if err != nil || token == "" {
		t.state = StateClosed
		return nil, ErrNoToken
	}

	wsURL := *t.base
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/api/v1/notifications/ws"
	wsURL.RawQuery = url.Values{"token": {token}}.Encode()

	conn, resp, err := t.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		t.state = StateClosed
		if resp != nil {
			resp.Body.Close()
			err = fmt.Errorf("failed to open push channel (status %d): %w", resp.StatusCode, err)
		}
		t.report("connect", err)
		return nil, err
	}

	done := make(chan struct{})
	t.conn = conn
	t.state = StateOpen
	go t.readLoop(conn, done)
	return done, nil
}

// Disconnect closes the live connection if one exists. Safe to call at any
// time in any state.
func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		deadline := time.Now().Add(time.Second)
		t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		t.conn.Close()
		t.conn = nil
	}
	t.state = StateClosed
}

// State reports the current connection state.
func (t *Transport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// readLoop consumes pushed frames until the connection dies. Each frame is
// one notification; frames that do not decode are dropped without closing
// the channel, so payload evolution never takes the feed down.
func (t *Transport) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			if t.conn == conn {
				t.conn = nil
				t.state = StateClosed
			}
			t.mu.Unlock()
			return
		}
		var n Notification
		if err := json.Unmarshal(data, &n); err != nil {
			t.log.Debug().Err(err).Msg("dropping undecodable push frame")
			continue
		}
		t.store.Add(n)
		if t.cfg.OnNotification != nil {
			t.cfg.OnNotification(n)
		}
	}
}

// do runs one authenticated REST call against the API.
func (t *Transport) do(ctx context.Context, method, path string, body, out interface{}) error {
	token, err := t.cfg.Token.Token()
	if err != nil || token == "" {
		return ErrNoToken
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func (t *Transport) report(op string, err error) {
	t.log.Warn().Err(err).Str("op", op).Msg("notification operation failed")
	if t.cfg.OnError != nil {
		t.cfg.OnError(op, err)
	}
}
