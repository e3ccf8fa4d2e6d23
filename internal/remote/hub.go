package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"dugsi-go/internal/dugsi"
)

// HubRemote talks to a dugsi hub server over HTTP and WebSocket. Documents
// live at /v1/schools/{principal}; /v1/schools/{principal}/watch streams
// every change as a JSON frame. Requests carry a bearer token whose subject
// must match the principal; the server rejects everything else.
type HubRemote struct {
	baseURL string
	token   string
	client  *http.Client
	dialer  *websocket.Dialer
	log     dugsi.Logger
}

var _ dugsi.Remote = (*HubRemote)(nil)

// WatchFrame is one message on the watch stream. Doc is nil when the
// principal has no document yet.
type WatchFrame struct {
	Doc *dugsi.Document `json:"doc"`
}

// NewHubRemote creates a client for the hub at baseURL (e.g.
// "http://hub.example.org:8920"), authenticating with token.
func NewHubRemote(baseURL, token string, log dugsi.Logger) *HubRemote {
	if log == nil {
		log = dugsi.NewNopLogger()
	}
	return &HubRemote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:     log,
	}
}

func (h *HubRemote) docURL(principal string) string {
	return h.baseURL + "/v1/schools/" + url.PathEscape(principal)
}

// Load fetches the principal's document. A 404 means no document exists
// yet, reported as (nil, nil).
func (h *HubRemote) Load(ctx context.Context, principal string) (*dugsi.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.docURL(principal), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var doc dugsi.Document
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding document: %w", err)
		}
		return &doc, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, hubError(resp)
	}
}

// Put replaces the principal's document.
func (h *HubRemote) Put(ctx context.Context, principal string, doc dugsi.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.docURL(principal), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("putting document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return hubError(resp)
	}
	return nil
}

// Watch opens the principal's watch stream. The hub sends the current
// state as the first frame and every subsequent change as it happens.
func (h *HubRemote) Watch(ctx context.Context, principal string) (<-chan dugsi.WatchEvent, func(), error) {
	wsURL, err := toWebSocketURL(h.docURL(principal) + "/watch")
	if err != nil {
		return nil, nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.token)

	conn, resp, err := h.dialer.DialContext(ctx, wsURL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dialing watch stream: %w", err)
	}

	ch := make(chan dugsi.WatchEvent, 16)
	cancel := func() { conn.Close() }

	go func() {
		defer close(ch)
		defer conn.Close()
		for {
			var frame WatchFrame
			if err := conn.ReadJSON(&frame); err != nil {
				select {
				case <-ctx.Done():
				default:
					ch <- dugsi.WatchEvent{Err: fmt.Errorf("reading watch stream: %w", err)}
				}
				return
			}
			ch <- dugsi.WatchEvent{Doc: frame.Doc}
		}
	}()

	return ch, cancel, nil
}

func toWebSocketURL(httpURL string) (string, error) {
	u, err := url.Parse(httpURL)
	if err != nil {
		return "", fmt.Errorf("parsing hub url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported hub url scheme: %s", u.Scheme)
	}
	return u.String(), nil
}

func hubError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("hub returned %d: %s", resp.StatusCode, msg)
}
