// Package gatewaytest provides an in-process analysis backend for tests.
// It speaks the same JSON contract as the real crawl / RAG server.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
)

// Site is one website the fake backend knows.
type Site struct {
	StartURL    string
	CompanyName string
	DomainLimit string
	Visited     int
	Finished    bool
	CrawlTime   time.Time
}

// Query is one recorded query request.
type Query struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	WebURL         string `json:"web_url"`
	HostName       string `json:"host_name"`
	HostLogo       string `json:"host_logo"`
}

type historyMessage struct {
	Rule    string `json:"rule"`
	Content string `json:"content"`
}

type historyEntry struct {
	ConversationID string           `json:"conversation_id"`
	Conversation   []historyMessage `json:"conversation"`
	Timestamp      string           `json:"timestamp"`
	HostName       string           `json:"host_name"`
	HostLogo       string           `json:"host_logo"`
	HostURL        string           `json:"host_url"`
}

// Backend is a fake analysis backend served by httptest.
type Backend struct {
	*httptest.Server

	mu          sync.Mutex
	sites       map[string]*Site
	order       []string
	history     []*historyEntry
	queries     []Query
	crawls      int
	initFailure string
	queryStatus int
	queryGate   chan struct{}
	questions   []string
}

// NewBackend starts a fake backend. Call Close when done.
func NewBackend() *Backend {
	b := &Backend{
		sites:     make(map[string]*Site),
		questions: []string{"What is this site about?", "Who runs it?"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	mux.HandleFunc("GET /get_websites", b.handleWebsites)
	mux.HandleFunc("POST /crawl", b.handleCrawl)
	mux.HandleFunc("POST /initialize_rag", b.handleInitialize)
	mux.HandleFunc("POST /query", b.handleQuery)
	mux.HandleFunc("POST /get_website_info", b.handleWebsiteInfo)
	mux.HandleFunc("POST /get_chat_history", b.handleHistory)

	b.Server = httptest.NewServer(mux)
	return b
}

// AddSite registers a site as already crawled (or crawling).
func (b *Backend) AddSite(s Site) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putLocked(s)
}

func (b *Backend) putLocked(s Site) {
	s.StartURL = domain.AddHTTPS(s.StartURL)
	if s.CrawlTime.IsZero() {
		s.CrawlTime = time.Now()
	}
	key := domain.SiteKey(s.StartURL)
	if _, ok := b.sites[key]; !ok {
		b.order = append(b.order, key)
	}
	b.sites[key] = &s
}

// SetProgress updates the crawl progress of a known site.
func (b *Backend) SetProgress(startURL string, visited int, finished bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.sites[domain.SiteKey(startURL)]; ok {
		s.Visited = visited
		s.Finished = finished
	}
}

// FailInitialize makes initialize_rag reply with a failure status. Empty resets.
func (b *Backend) FailInitialize(message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initFailure = message
}

// FailQueries makes /query reply with the given HTTP status. 0 resets.
func (b *Backend) FailQueries(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queryStatus = status
}

// HoldQueries blocks every /query until the returned release func is called.
func (b *Backend) HoldQueries() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.queryGate = gate
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.queryGate = nil
			b.mu.Unlock()
			close(gate)
		})
	}
}

// AddHistory stores a past conversation for the history endpoint.
func (b *Backend) AddHistory(id, hostURL, hostName string, at time.Time, turns ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := &historyEntry{
		ConversationID: id,
		Timestamp:      at.UTC().Format(time.RFC3339),
		HostName:       hostName,
		HostURL:        hostURL,
	}
	for i, t := range turns {
		rule := "user"
		if i%2 == 1 {
			rule = "assistant"
		}
		e.Conversation = append(e.Conversation, historyMessage{Rule: rule, Content: t})
	}
	b.history = append(b.history, e)
}

// Crawls returns the number of accepted crawl requests.
func (b *Backend) Crawls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.crawls
}

// Queries returns the recorded query requests.
func (b *Backend) Queries() []Query {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Query(nil), b.queries...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func visitedList(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("page-%d", i)
	}
	return out
}

func (b *Backend) handleWebsites(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]map[string]any, 0, len(b.order))
	for _, key := range b.order {
		s := b.sites[key]
		out = append(out, map[string]any{
			"start_urls":     []string{s.StartURL},
			"company_name":   s.CompanyName,
			"domain_limit":   s.DomainLimit,
			"visited_urls":   visitedList(s.Visited),
			"domain_urls":    map[string]int{s.DomainLimit: s.Visited},
			"failed_urls":    [][]string{},
			"crawl_finished": s.Finished,
			"crawl_time":     s.CrawlTime.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (b *Backend) handleCrawl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WebURL      string `json:"web_url"`
		CompanyName string `json:"company_name"`
		DomainLimit string `json:"domain_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WebURL == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "web_url is required"})
		return
	}

	b.mu.Lock()
	b.crawls++
	b.putLocked(Site{StartURL: req.WebURL, CompanyName: req.CompanyName, DomainLimit: req.DomainLimit})
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Crawling started"})
}

func (b *Backend) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WebURL       string `json:"web_url"`
		LoadFromDisk bool   `json:"load_from_disk"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initFailure != "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": b.initFailure})
		return
	}
	s, ok := b.sites[domain.SiteKey(req.WebURL)]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "not_found", "message": "No data found for this website"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "success",
		"recommended_questions": b.questions,
		"website_analysis_info": map[string]any{
			"visited_urls":   visitedList(s.Visited),
			"crawl_finished": s.Finished,
		},
	})
}

func (b *Backend) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q Query
	_ = json.NewDecoder(r.Body).Decode(&q)

	b.mu.Lock()
	gate := b.queryGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.queries = append(b.queries, q)
	if b.queryStatus != 0 {
		writeJSON(w, b.queryStatus, map[string]string{"error": "rag chain unavailable"})
		return
	}

	answer := "Answer to: " + q.Query
	b.recordTurnLocked(q, answer)
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (b *Backend) recordTurnLocked(q Query, answer string) {
	var e *historyEntry
	for _, h := range b.history {
		if h.ConversationID == q.ConversationID {
			e = h
			break
		}
	}
	if e == nil {
		e = &historyEntry{ConversationID: q.ConversationID, HostName: q.HostName, HostLogo: q.HostLogo, HostURL: q.WebURL}
		b.history = append(b.history, e)
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339)
	e.Conversation = append(e.Conversation,
		historyMessage{Rule: "user", Content: q.Query},
		historyMessage{Rule: "assistant", Content: answer})
}

func (b *Backend) handleWebsiteInfo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DomainName string `json:"domainName"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sites[domain.SiteKey(req.DomainName)]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"status": "error", "message": "Website not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data": map[string]any{
			"visited_urls": visitedList(s.Visited),
			"domain_urls":  map[string]int{s.DomainLimit: s.Visited},
			"failed_urls":  [][]string{},
			"crawl_time":   s.CrawlTime.UTC().Format(time.RFC3339),
			"company_name": s.CompanyName,
			"domain_limit": s.DomainLimit,
		},
	})
}

func (b *Backend) handleHistory(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.history)
}
