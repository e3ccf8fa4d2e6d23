package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/remote"
)

// Server is the dugsi hub: a small document server holding one snapshot
// document per school. Clients read and replace their document over HTTP
// and observe changes over a WebSocket watch stream. Each document is also
// persisted as a JSON file under DataDir so a hub restart loses nothing.
type Server struct {
	listen  string
	dataDir string
	tokens  *TokenService
	log     dugsi.Logger

	mu       sync.Mutex
	docs     map[string]dugsi.Document
	watchers map[string]map[int]chan remote.WatchFrame
	nextID   int

	httpServer *http.Server
}

// NewServer creates a hub server. Existing documents under dataDir are
// loaded immediately.
func NewServer(listen, dataDir string, tokens *TokenService, log dugsi.Logger) (*Server, error) {
	if log == nil {
		log = dugsi.NewNopLogger()
	}
	s := &Server{
		listen:   listen,
		dataDir:  dataDir,
		tokens:   tokens,
		log:      log,
		docs:     make(map[string]dugsi.Document),
		watchers: make(map[string]map[int]chan remote.WatchFrame),
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating hub data directory: %w", err)
	}
	if err := s.loadDocuments(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) loadDocuments() error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return fmt.Errorf("reading hub data directory: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dataDir, name))
		if err != nil {
			return fmt.Errorf("reading document %s: %w", name, err)
		}
		var doc dugsi.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			s.log.Warn("skipping undecodable document", "file", name, "error", err)
			continue
		}
		principal := strings.TrimSuffix(name, ".json")
		s.docs[principal] = doc
	}

	s.log.Info("loaded documents", "count", len(s.docs))
	return nil
}

// Router builds the hub's HTTP routes. Exposed separately from Start so
// tests can mount it on httptest servers.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Route("/v1/schools/{principal}", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/", s.handleGet)
		r.Put("/", s.handlePut)
		r.Get("/watch", s.handleWatch)
	})

	return r
}

// Start runs the server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.listen,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("hub listening", "addr", s.listen)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("hub server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down hub: %w", err)
	}
	return nil
}

// authenticate requires a bearer token whose subject matches the principal
// in the URL. A valid token for some other school is a 403, not a 401.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		subject, err := s.tokens.Validate(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		principal := chi.URLParam(r, "principal")
		if subject != principal {
			http.Error(w, "token does not grant access to this school", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")

	s.mu.Lock()
	doc, ok := s.docs[principal]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "no document for school", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		s.log.Error("writing document response", "error", err)
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")

	var doc dugsi.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		http.Error(w, "malformed document", http.StatusBadRequest)
		return
	}

	if err := s.storeDocument(principal, doc); err != nil {
		s.log.Error("persisting document", "principal", principal, "error", err)
		http.Error(w, "failed to persist document", http.StatusInternalServerError)
		return
	}

	s.log.Info("document replaced", "principal", principal, "version", doc.Version)
	w.WriteHeader(http.StatusNoContent)
}

// storeDocument persists to disk first, then publishes. Watchers never see
// a version the hub could still lose in a restart.
func (s *Server) storeDocument(principal string, doc dugsi.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	path := filepath.Join(s.dataDir, principal+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing document: %w", err)
	}

	s.mu.Lock()
	s.docs[principal] = doc
	for _, ch := range s.watchers[principal] {
		select {
		case ch <- remote.WatchFrame{Doc: &doc}:
		default:
			// Slow watcher; it catches up from its next delivered frame.
		}
	}
	s.mu.Unlock()
	return nil
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	principal := chi.URLParam(r, "principal")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch := make(chan remote.WatchFrame, 16)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.watchers[principal] == nil {
		s.watchers[principal] = make(map[int]chan remote.WatchFrame)
	}
	s.watchers[principal][id] = ch

	// Current state is the first frame, nil doc when nothing stored yet.
	var first remote.WatchFrame
	if doc, ok := s.docs[principal]; ok {
		first.Doc = &doc
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.watchers[principal], id)
		s.mu.Unlock()
	}()

	s.log.Debug("watch started", "principal", principal)

	if err := s.writeFrame(conn, first); err != nil {
		return
	}

	// Reads are discarded; their only job is detecting a closed peer.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-ch:
			if err := s.writeFrame(conn, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			s.log.Debug("watch closed", "principal", principal)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame remote.WatchFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(frame)
}
