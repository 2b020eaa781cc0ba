// Package fakepds provides an in-process fake record store for tests. It
// serves the four XRPC record operations over HTTP plus the WebSocket
// event stream, with request counters and failure injection so tests can
// assert call counts, exercise store errors and drive the pagination
// safety valves.
package fakepds

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wharfside/wharf/pkg/models"
)

// Event mirrors the wire shape of the store's commit events.
type Event struct {
	Tenant      string    `json:"repo"`
	Commit      string    `json:"commit"`
	Collections []string  `json:"collections,omitempty"`
	Time        time.Time `json:"time"`
}

// Failure is an injected error response for one procedure.
type Failure struct {
	Status  int
	Code    string
	Message string
	// Remaining is how many more calls fail; negative means every call.
	Remaining int
}

// Server is the fake store. All exported methods are safe for concurrent
// use.
type Server struct {
	mu sync.Mutex
	// records is did -> collection -> rkey -> value.
	records  map[string]map[string]map[string]models.Value
	counts   map[string]int
	failures map[string]*Failure
	// repeatCursor, when set, makes every listRecords page return the
	// same cursor: a misbehaving store for pagination tests.
	repeatCursor string
	clients      map[*websocket.Conn]struct{}

	httpSrv  *httptest.Server
	upgrader websocket.Upgrader
}

// New starts the fake store on an ephemeral port.
func New() *Server {
	s := &Server{
		records:  make(map[string]map[string]map[string]models.Value),
		counts:   make(map[string]int),
		failures: make(map[string]*Failure),
		clients:  make(map[*websocket.Conn]struct{}),
	}

	router := mux.NewRouter()
	router.HandleFunc("/xrpc/com.atproto.repo.getRecord", s.handleGetRecord).Methods(http.MethodGet)
	router.HandleFunc("/xrpc/com.atproto.repo.putRecord", s.handlePutRecord).Methods(http.MethodPost)
	router.HandleFunc("/xrpc/com.atproto.repo.listRecords", s.handleListRecords).Methods(http.MethodGet)
	router.HandleFunc("/xrpc/com.atproto.repo.deleteRecord", s.handleDeleteRecord).Methods(http.MethodPost)
	router.HandleFunc("/xrpc/events", s.handleEvents)

	s.httpSrv = httptest.NewServer(router)
	return s
}

// URL is the HTTP endpoint for the record operations.
func (s *Server) URL() string {
	return s.httpSrv.URL
}

// EventsURL is the WebSocket endpoint of the event stream.
func (s *Server) EventsURL() string {
	return "ws" + strings.TrimPrefix(s.httpSrv.URL, "http") + "/xrpc/events"
}

func (s *Server) Close() {
	s.mu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()
	s.httpSrv.Close()
}

// Seed stores a value directly, bypassing counters.
func (s *Server) Seed(did, collection, rkey string, value models.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(did, collection, rkey, value)
}

// Record returns a stored value, or nil.
func (s *Server) Record(did, collection, rkey string) models.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[did][collection][rkey]
}

// Collection returns a copy of one collection's records.
func (s *Server) Collection(did, collection string) map[string]models.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.Value)
	for rkey, v := range s.records[did][collection] {
		out[rkey] = v
	}
	return out
}

// Calls returns how many times one procedure was called.
func (s *Server) Calls(proc string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[proc]
}

// TotalCalls returns the number of record-operation requests received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.counts {
		total += n
	}
	return total
}

// FailCalls makes the next n calls of proc fail with the given error.
// n < 0 fails every call until cleared with n == 0.
func (s *Server) FailCalls(proc string, n, status int, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n == 0 {
		delete(s.failures, proc)
		return
	}
	s.failures[proc] = &Failure{Status: status, Code: code, Remaining: n}
}

// RepeatCursor makes listRecords return cursor on every page, forever.
// Empty restores normal pagination.
func (s *Server) RepeatCursor(cursor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repeatCursor = cursor
}

// Emit sends one event to every connected stream client.
func (s *Server) Emit(ev Event) {
	if ev.Commit == "" {
		ev.Commit = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		_ = conn.WriteJSON(ev)
	}
}

func (s *Server) put(did, collection, rkey string, value models.Value) {
	if s.records[did] == nil {
		s.records[did] = make(map[string]map[string]models.Value)
	}
	if s.records[did][collection] == nil {
		s.records[did][collection] = make(map[string]models.Value)
	}
	s.records[did][collection][rkey] = value
}

// intercept counts the call and serves an injected failure if one is
// armed. It reports whether the request was already answered.
func (s *Server) intercept(w http.ResponseWriter, proc string) bool {
	s.mu.Lock()
	s.counts[proc]++
	f := s.failures[proc]
	if f != nil {
		if f.Remaining > 0 {
			f.Remaining--
			if f.Remaining == 0 {
				delete(s.failures, proc)
			}
		}
	}
	s.mu.Unlock()

	if f == nil {
		return false
	}
	writeError(w, f.Status, f.Code, f.Message)
	return true
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, "getRecord") {
		return
	}
	q := r.URL.Query()
	did, collection, rkey := q.Get("repo"), q.Get("collection"), q.Get("rkey")
	if did == "" || collection == "" || rkey == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "missing parameter")
		return
	}

	s.mu.Lock()
	value, ok := s.records[did][collection][rkey]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "RecordNotFound", "record not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uri":   recordURI(did, collection, rkey),
		"value": value,
	})
}

type writeRequest struct {
	Repo       string       `json:"repo"`
	Collection string       `json:"collection"`
	RKey       string       `json:"rkey"`
	Record     models.Value `json:"record"`
}

func (s *Server) handlePutRecord(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, "putRecord") {
		return
	}
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}
	if req.Repo == "" || req.Collection == "" || req.RKey == "" {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "missing parameter")
		return
	}

	s.mu.Lock()
	s.put(req.Repo, req.Collection, req.RKey, req.Record)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"uri": recordURI(req.Repo, req.Collection, req.RKey),
	})
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, "listRecords") {
		return
	}
	q := r.URL.Query()
	did, collection := q.Get("repo"), q.Get("collection")
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	cursor := q.Get("cursor")

	s.mu.Lock()
	byKey := s.records[did][collection]
	rkeys := make([]string, 0, len(byKey))
	for rkey := range byKey {
		rkeys = append(rkeys, rkey)
	}
	sort.Strings(rkeys)
	repeat := s.repeatCursor

	start := 0
	if repeat == "" && cursor != "" {
		if n, err := strconv.Atoi(cursor); err == nil {
			start = n
		}
	}
	end := start + limit
	if end > len(rkeys) {
		end = len(rkeys)
	}
	if start > end {
		start = end
	}

	records := make([]map[string]any, 0, end-start)
	for _, rkey := range rkeys[start:end] {
		records = append(records, map[string]any{
			"uri":   recordURI(did, collection, rkey),
			"value": byKey[rkey],
		})
	}
	s.mu.Unlock()

	resp := map[string]any{"records": records}
	if repeat != "" {
		resp["cursor"] = repeat
	} else if end < len(rkeys) {
		resp["cursor"] = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	if s.intercept(w, "deleteRecord") {
		return
	}
	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	s.mu.Lock()
	delete(s.records[req.Repo][req.Collection], req.RKey)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain reads until the client goes away, then forget it.
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func recordURI(did, collection, rkey string) string {
	return "at://" + did + "/" + collection + "/" + rkey
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
