package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/gateway"
	"github.com/MrSnakeDoc/asksite/internal/logger"
)

// fakeBackend answers from fields; a non-nil gate blocks each call until released.
type fakeBackend struct {
	mu sync.Mutex

	initOut    domain.InitOutcome
	initErr    error
	initCalls  []bool // loadFromDisk of each call
	answer     string
	queryErr   error
	queries    []gateway.QueryRequest
	history    []domain.Conversation
	historyErr error

	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeBackend) wait() {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeBackend) Initialize(_ context.Context, _ string, loadFromDisk bool) (domain.InitOutcome, error) {
	f.mu.Lock()
	f.initCalls = append(f.initCalls, loadFromDisk)
	f.mu.Unlock()
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initOut, f.initErr
}

func (f *fakeBackend) Query(_ context.Context, q gateway.QueryRequest) (string, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answer, f.queryErr
}

func (f *fakeBackend) GetChatHistory(context.Context, string) ([]domain.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history, f.historyErr
}

func (f *fakeBackend) queryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

type fakeSites struct {
	mu         sync.Mutex
	known      map[string]*domain.Site
	registered []domain.SiteInfo
	err        error
}

func (s *fakeSites) Register(_ context.Context, info domain.SiteInfo) (gateway.CrawlReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = append(s.registered, info)
	if s.err != nil {
		return gateway.CrawlReceipt{}, s.err
	}
	return gateway.CrawlReceipt{Accepted: true}, nil
}

func (s *fakeSites) Lookup(domainURL string) *domain.Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.known[domain.SiteKey(domainURL)].Clone()
}

func (s *fakeSites) set(site domain.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.known == nil {
		s.known = make(map[string]*domain.Site)
	}
	s.known[domain.SiteKey(site.DomainURL)] = &site
}

var exampleSite = &domain.Site{DomainURL: "https://example.com/", HostName: "example"}

func successOutcome() domain.InitOutcome {
	return domain.InitOutcome{
		Status:    domain.InitSuccess,
		Questions: []string{"Q1", "Q2"},
		Analysis:  domain.AnalysisInfo{VisitedCount: 10, CrawlFinished: true},
	}
}

func newTestController(b *fakeBackend, s *fakeSites) *Controller {
	return New(b, s, nil, Options{UserID: "test1", MinPagesToChat: 10}, logger.New("error", false))
}

func readyController(t *testing.T, b *fakeBackend) *Controller {
	t.Helper()
	b.initOut = successOutcome()
	c := newTestController(b, &fakeSites{})
	snap, err := c.BindToSite(context.Background(), exampleSite)
	if err != nil || snap.State != StateReady {
		t.Fatalf("BindToSite() = %s, %v; want ready", snap.State, err)
	}
	return c
}

func TestInitialState(t *testing.T) {
	c := newTestController(&fakeBackend{}, &fakeSites{})
	snap := c.Snapshot()

	if snap.State != StateIdle || snap.Pending != PendingNone || snap.BoundSite != nil {
		t.Errorf("initial snapshot = %+v", snap)
	}
	if !strings.HasPrefix(snap.Conversation.ID, "conv-") {
		t.Errorf("conversation id = %q", snap.Conversation.ID)
	}
}

func TestBindSuccess(t *testing.T) {
	b := &fakeBackend{initOut: successOutcome()}
	c := newTestController(b, &fakeSites{})

	snap, err := c.BindToSite(context.Background(), exampleSite)
	if err != nil {
		t.Fatalf("BindToSite() error = %v", err)
	}
	if snap.State != StateReady || snap.Pending != PendingNone {
		t.Errorf("state = %s, pending = %s", snap.State, snap.Pending)
	}
	if snap.Welcome == nil || snap.Welcome.HostName != "example" {
		t.Fatalf("welcome = %+v, want it to reference example", snap.Welcome)
	}
	if len(snap.Welcome.Questions) != 2 {
		t.Errorf("questions = %v, want 2", snap.Welcome.Questions)
	}
	if snap.Welcome.HostLogo == "" {
		t.Error("host logo should default to the favicon")
	}
	if len(snap.Conversation.Messages) != 0 {
		t.Errorf("bind should not append messages, got %d", len(snap.Conversation.Messages))
	}
	if len(b.initCalls) != 1 || !b.initCalls[0] {
		t.Errorf("initialize calls = %v, want one with loadFromDisk", b.initCalls)
	}
	if !snap.ChatReady {
		t.Error("finished site should be chat ready")
	}
}

func TestBindNotFound(t *testing.T) {
	b := &fakeBackend{initOut: domain.InitOutcome{Status: domain.InitNotFound, Message: "no data"}}
	c := newTestController(b, &fakeSites{})

	snap, err := c.BindToSite(context.Background(), exampleSite)
	if err != nil {
		t.Fatalf("BindToSite() error = %v", err)
	}
	if snap.State != StateIdle {
		t.Errorf("state = %s, want idle", snap.State)
	}
	if len(snap.Conversation.Messages) != 0 {
		t.Errorf("not_found must not append messages, got %v", snap.Conversation.Messages)
	}
	if snap.Notice != "no data" || !snap.CrawlSuggested {
		t.Errorf("notice = %q, crawl suggested = %v", snap.Notice, snap.CrawlSuggested)
	}
}

func TestBindFailures(t *testing.T) {
	tests := []struct {
		name    string
		out     domain.InitOutcome
		err     error
		wantMsg string
	}{
		{
			name:    "backend failure",
			out:     domain.InitOutcome{Status: domain.InitFailure, Message: "index corrupted"},
			wantMsg: "index corrupted",
		},
		{
			name:    "unreachable",
			err:     &gateway.TransportError{Op: gateway.OpInitialize, Kind: gateway.KindNetworkUnreachable},
			wantMsg: msgCannotConnect,
		},
		{
			name:    "timeout",
			err:     &gateway.TransportError{Op: gateway.OpInitialize, Kind: gateway.KindTimeout},
			wantMsg: msgCannotConnect,
		},
		{
			name:    "http error",
			err:     &gateway.TransportError{Op: gateway.OpInitialize, Kind: gateway.KindHTTPError, Status: 500},
			wantMsg: msgInitFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(&fakeBackend{initOut: tt.out, initErr: tt.err}, &fakeSites{})

			snap, err := c.BindToSite(context.Background(), exampleSite)
			if err != nil {
				t.Fatalf("BindToSite() error = %v, failures belong in state", err)
			}
			if snap.State != StateFailed || snap.Pending != PendingNone {
				t.Errorf("state = %s, pending = %s", snap.State, snap.Pending)
			}
			if !strings.HasPrefix(snap.LastError, tt.wantMsg) {
				t.Errorf("LastError = %q, want prefix %q", snap.LastError, tt.wantMsg)
			}
		})
	}
}

func TestRetryAfterFailure(t *testing.T) {
	b := &fakeBackend{initErr: &gateway.TransportError{Op: gateway.OpInitialize, Kind: gateway.KindTimeout}}
	c := newTestController(b, &fakeSites{})

	if _, err := c.Retry(context.Background()); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("Retry() from idle error = %v, want ErrNothingToRetry", err)
	}

	_, _ = c.BindToSite(context.Background(), exampleSite)

	b.mu.Lock()
	b.initErr = nil
	b.initOut = successOutcome()
	b.mu.Unlock()

	snap, err := c.Retry(context.Background())
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if snap.State != StateReady || snap.LastError != "" {
		t.Errorf("after retry: state = %s, last error = %q", snap.State, snap.LastError)
	}
	if snap.BoundSite == nil || snap.BoundSite.HostName != "example" {
		t.Errorf("retained site = %+v", snap.BoundSite)
	}
}

func TestSubmitQuery(t *testing.T) {
	b := &fakeBackend{answer: "9-5 Mon-Fri"}
	c := readyController(t, b)

	snap, err := c.SubmitQuery(context.Background(), "What are your hours?")
	if err != nil {
		t.Fatalf("SubmitQuery() error = %v", err)
	}

	want := []domain.Message{
		{Role: domain.RoleUser, Content: "What are your hours?"},
		{Role: domain.RoleAssistant, Content: "9-5 Mon-Fri"},
	}
	if len(snap.Conversation.Messages) != len(want) {
		t.Fatalf("messages = %+v", snap.Conversation.Messages)
	}
	for i := range want {
		if snap.Conversation.Messages[i] != want[i] {
			t.Errorf("message[%d] = %+v, want %+v", i, snap.Conversation.Messages[i], want[i])
		}
	}
	if snap.Pending != PendingNone || snap.State != StateReady {
		t.Errorf("state = %s, pending = %s", snap.State, snap.Pending)
	}

	q := b.queries[0]
	if q.UserID != "test1" || q.ConversationID != snap.Conversation.ID || q.Site.HostURL != "https://example.com/" {
		t.Errorf("query request = %+v", q)
	}
}

func TestUserMessageAppearsBeforeAnswer(t *testing.T) {
	b := &fakeBackend{answer: "9-5 Mon-Fri"}
	c := readyController(t, b)
	b.gate = make(chan struct{})
	b.entered = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.SubmitQuery(context.Background(), "What are your hours?")
	}()
	<-b.entered

	snap := c.Snapshot()
	if snap.State != StateQuerying || snap.Pending != PendingQuerying {
		t.Errorf("in flight: state = %s, pending = %s", snap.State, snap.Pending)
	}
	if len(snap.Conversation.Messages) != 1 || snap.Conversation.Messages[0].Role != domain.RoleUser {
		t.Errorf("in flight messages = %+v, want only the user message", snap.Conversation.Messages)
	}

	close(b.gate)
	<-done
	if got := len(c.Snapshot().Conversation.Messages); got != 2 {
		t.Errorf("messages after answer = %d, want 2", got)
	}
}

func TestSubmitQueryRejectedWhileInFlight(t *testing.T) {
	b := &fakeBackend{
		answer:  "first answer",
		history: []domain.Conversation{{ID: "conv-stored", SiteRef: "https://example.com/"}},
	}
	c := readyController(t, b)
	if _, err := c.FetchHistory(context.Background()); err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	activeID := c.Snapshot().Conversation.ID
	b.gate = make(chan struct{})
	b.entered = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.SubmitQuery(context.Background(), "first")
	}()
	<-b.entered

	for _, text := range []string{"second", "third", ""} {
		if _, err := c.SubmitQuery(context.Background(), text); !errors.Is(err, ErrOperationInProgress) {
			t.Errorf("SubmitQuery(%q) in flight error = %v, want ErrOperationInProgress", text, err)
		}
	}
	if _, err := c.BindToSite(context.Background(), exampleSite); !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("BindToSite() in flight error = %v, want ErrOperationInProgress", err)
	}
	if _, err := c.RequestCrawl(context.Background(), domain.SiteInfo{DomainURL: "https://example.org/"}); !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("RequestCrawl() in flight error = %v, want ErrOperationInProgress", err)
	}
	snap, err := c.LoadHistoricalConversation("conv-stored")
	if !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("LoadHistoricalConversation() in flight error = %v, want ErrOperationInProgress", err)
	}
	if snap.Conversation.ID != activeID {
		t.Errorf("conversation = %s while in flight, want %s", snap.Conversation.ID, activeID)
	}

	close(b.gate)
	<-done

	msgs := c.Snapshot().Conversation.Messages
	if len(msgs) != 2 || msgs[0].Content != "first" || msgs[1].Content != "first answer" {
		t.Errorf("messages = %+v, want exactly the first exchange", msgs)
	}
	if b.queryCount() != 1 {
		t.Errorf("query calls = %d, want 1", b.queryCount())
	}
}

func TestBindOtherSiteStartsNewConversation(t *testing.T) {
	b := &fakeBackend{answer: "hi there"}
	c := readyController(t, b)
	if _, err := c.SubmitQuery(context.Background(), "hello"); err != nil {
		t.Fatalf("SubmitQuery() error = %v", err)
	}
	before := c.Snapshot().Conversation

	// Same site, different spelling: the thread continues.
	snap, err := c.BindToSite(context.Background(), &domain.Site{DomainURL: "www.example.com", HostName: "example"})
	if err != nil {
		t.Fatalf("BindToSite(same site) error = %v", err)
	}
	if snap.Conversation.ID != before.ID || len(snap.Conversation.Messages) != 2 {
		t.Errorf("rebinding the same site replaced the conversation: %+v", snap.Conversation)
	}

	other := &domain.Site{DomainURL: "https://other.org/", HostName: "other"}
	snap, err = c.BindToSite(context.Background(), other)
	if err != nil {
		t.Fatalf("BindToSite(other) error = %v", err)
	}
	if snap.State != StateReady {
		t.Errorf("state = %s, want ready", snap.State)
	}
	if snap.Conversation.ID == before.ID {
		t.Error("switching sites kept the conversation id")
	}
	if len(snap.Conversation.Messages) != 0 || snap.Conversation.SiteRef != "https://other.org/" {
		t.Errorf("conversation = %+v, want empty and bound to other.org", snap.Conversation)
	}
	if before.SiteRef != "https://example.com/" || len(before.Messages) != 2 {
		t.Errorf("previous conversation was mutated: %+v", before)
	}

	if _, err := c.SubmitQuery(context.Background(), "again"); err != nil {
		t.Fatalf("SubmitQuery() error = %v", err)
	}
	b.mu.Lock()
	last := b.queries[len(b.queries)-1]
	b.mu.Unlock()
	if last.ConversationID == before.ID || last.Site.HostURL != "https://other.org/" {
		t.Errorf("query after switch = %+v, want a new thread on other.org", last)
	}
}

func TestSubmitQueryRejections(t *testing.T) {
	b := &fakeBackend{}
	idle := newTestController(b, &fakeSites{})
	if _, err := idle.SubmitQuery(context.Background(), "hello"); !errors.Is(err, ErrNotReady) {
		t.Errorf("SubmitQuery() while idle error = %v, want ErrNotReady", err)
	}

	ready := readyController(t, b)
	for _, text := range []string{"", "   ", "\n\t"} {
		snap, err := ready.SubmitQuery(context.Background(), text)
		if !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("SubmitQuery(%q) error = %v, want ErrEmptyQuery", text, err)
		}
		if len(snap.Conversation.Messages) != 0 {
			t.Errorf("transcript changed on empty query: %+v", snap.Conversation.Messages)
		}
	}
	if b.queryCount() != 0 {
		t.Errorf("query calls = %d, want none", b.queryCount())
	}
}

func TestSubmitQueryFailureIsVisible(t *testing.T) {
	b := &fakeBackend{queryErr: &gateway.TransportError{Op: gateway.OpQuery, Kind: gateway.KindHTTPError, Status: 500}}
	c := readyController(t, b)

	snap, err := c.SubmitQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("SubmitQuery() error = %v", err)
	}
	msgs := snap.Conversation.Messages
	if len(msgs) != 2 || msgs[1].Role != domain.RoleAssistant || !strings.HasPrefix(msgs[1].Content, msgQueryErrorPrefix) {
		t.Errorf("messages = %+v, want an assistant error message", msgs)
	}
	if snap.State != StateReady || snap.Pending != PendingNone {
		t.Errorf("state = %s, pending = %s, want ready/none", snap.State, snap.Pending)
	}
}

func TestStartNewConversation(t *testing.T) {
	b := &fakeBackend{answer: "a"}
	c := readyController(t, b)
	_, _ = c.SubmitQuery(context.Background(), "q")
	before := c.Snapshot().Conversation.ID

	snap, err := c.StartNewConversation(context.Background(), nil)
	if err != nil {
		t.Fatalf("StartNewConversation(nil) error = %v", err)
	}
	if snap.Conversation.ID == before {
		t.Error("conversation id should change")
	}
	if len(snap.Conversation.Messages) != 0 || snap.State != StateIdle || snap.BoundSite != nil {
		t.Errorf("snapshot = %+v", snap)
	}

	snap, err = c.StartNewConversation(context.Background(), exampleSite)
	if err != nil {
		t.Fatalf("StartNewConversation(site) error = %v", err)
	}
	if snap.State != StateReady || snap.Conversation.SiteRef != "https://example.com/" {
		t.Errorf("state = %s, site ref = %q", snap.State, snap.Conversation.SiteRef)
	}
}

func TestStartNewConversationDiscardsStaleAnswer(t *testing.T) {
	b := &fakeBackend{answer: "late answer"}
	c := readyController(t, b)
	b.gate = make(chan struct{})
	b.entered = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.SubmitQuery(context.Background(), "old question")
	}()
	<-b.entered

	snap, err := c.StartNewConversation(context.Background(), exampleSite)
	if !errors.Is(err, ErrOperationInProgress) {
		t.Errorf("StartNewConversation() while busy error = %v, want ErrOperationInProgress", err)
	}
	if snap.State != StateIdle || len(snap.Conversation.Messages) != 0 {
		t.Errorf("new conversation = %+v", snap)
	}

	close(b.gate)
	<-done

	snap = c.Snapshot()
	if len(snap.Conversation.Messages) != 0 {
		t.Errorf("stale answer leaked into new conversation: %+v", snap.Conversation.Messages)
	}
	if snap.Pending != PendingNone {
		t.Errorf("pending = %s, want none once the call resolved", snap.Pending)
	}
}

func TestConversationIDsAreFresh(t *testing.T) {
	c := newTestController(&fakeBackend{}, &fakeSites{})
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		snap, _ := c.StartNewConversation(context.Background(), nil)
		if seen[snap.Conversation.ID] {
			t.Fatalf("conversation id %q reused", snap.Conversation.ID)
		}
		seen[snap.Conversation.ID] = true
	}
}

func TestReembed(t *testing.T) {
	b := &fakeBackend{initOut: domain.InitOutcome{
		Status:   domain.InitSuccess,
		Analysis: domain.AnalysisInfo{VisitedCount: 12},
	}}
	sites := &fakeSites{}
	c := newTestController(b, sites)

	if _, err := c.Reembed(context.Background()); !errors.Is(err, ErrNoSite) {
		t.Errorf("Reembed() without site error = %v, want ErrNoSite", err)
	}

	snap, _ := c.BindToSite(context.Background(), exampleSite)
	if snap.ReembedAvailable {
		t.Error("no new pages yet, re-embed should not be offered")
	}

	// The crawl went on after initialize.
	sites.set(domain.Site{DomainURL: "https://example.com/", HostName: "example", VisitedCount: 30})
	if snap = c.Snapshot(); !snap.ReembedAvailable {
		t.Error("re-embed should be offered once new pages are known")
	}

	b.mu.Lock()
	b.initOut.Analysis.VisitedCount = 30
	b.mu.Unlock()
	snap, err := c.Reembed(context.Background())
	if err != nil {
		t.Fatalf("Reembed() error = %v", err)
	}
	if snap.ReembedAvailable {
		t.Error("re-embed should not be offered right after re-embedding")
	}
	if len(b.initCalls) != 2 || b.initCalls[1] {
		t.Errorf("initialize calls = %v, want the second without loadFromDisk", b.initCalls)
	}
}

func TestHistory(t *testing.T) {
	older := domain.Conversation{
		ID:        "conv-old",
		SiteRef:   "https://www.tum.de/en/",
		Messages:  []domain.Message{{Role: domain.RoleUser, Content: "hi"}, {Role: domain.RoleAssistant, Content: "hello"}},
		Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Site:      &domain.SiteMeta{HostURL: "https://www.tum.de/en/", HostName: "tum"},
	}
	newer := domain.Conversation{
		ID:        "conv-new",
		SiteRef:   "https://example.com/",
		Messages:  []domain.Message{{Role: domain.RoleUser, Content: "q"}},
		Timestamp: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		Site:      &domain.SiteMeta{HostURL: "https://example.com/", HostName: "example"},
	}
	b := &fakeBackend{history: []domain.Conversation{older, newer}, initOut: successOutcome()}
	c := newTestController(b, &fakeSites{})

	if _, err := c.LoadHistoricalConversation("conv-old"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("load before fetch error = %v, want ErrConversationNotFound", err)
	}

	convs, err := c.FetchHistory(context.Background())
	if err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if len(convs) != 2 || convs[0].ID != "conv-new" {
		t.Errorf("FetchHistory() order = %v, want newest first", convs)
	}

	snap, err := c.LoadHistoricalConversation("conv-old")
	if err != nil {
		t.Fatalf("LoadHistoricalConversation() error = %v", err)
	}
	if snap.Conversation.ID != "conv-old" || len(snap.Conversation.Messages) != 2 {
		t.Errorf("conversation = %+v", snap.Conversation)
	}
	if snap.BoundSite == nil || snap.BoundSite.HostName != "tum" {
		t.Errorf("bound site = %+v, want tum", snap.BoundSite)
	}
	if snap.State != StateIdle {
		t.Errorf("state = %s, want idle until the site is bound", snap.State)
	}

	// Binding continues the same thread.
	snap, _ = c.BindToSite(context.Background(), snap.BoundSite)
	if snap.State != StateReady || snap.Conversation.ID != "conv-old" || len(snap.Conversation.Messages) != 2 {
		t.Errorf("after bind: state = %s, conversation = %+v", snap.State, snap.Conversation)
	}

	// Unknown id is a no-op.
	before := c.Snapshot()
	after, err := c.LoadHistoricalConversation("conv-missing")
	if !errors.Is(err, ErrConversationNotFound) || after.Conversation.ID != before.Conversation.ID {
		t.Errorf("unknown id: err = %v, conversation = %s", err, after.Conversation.ID)
	}

	// A site initialized earlier in the process is ready right away.
	snap, _ = c.LoadHistoricalConversation("conv-old")
	if snap.State != StateReady {
		t.Errorf("reloading an initialized site: state = %s, want ready", snap.State)
	}
}

type memHistory struct {
	saved map[string][]domain.Conversation
}

func (m *memHistory) SaveHistory(_ context.Context, userID string, convs []domain.Conversation) error {
	m.saved[userID] = convs
	return nil
}

func (m *memHistory) LoadHistory(_ context.Context, userID string) ([]domain.Conversation, error) {
	return m.saved[userID], nil
}

func TestFetchHistoryFallsBackToCache(t *testing.T) {
	b := &fakeBackend{history: []domain.Conversation{{ID: "conv-1"}}}
	cache := &memHistory{saved: map[string][]domain.Conversation{}}
	c := New(b, &fakeSites{}, cache, Options{UserID: "test1"}, logger.New("error", false))

	if _, err := c.FetchHistory(context.Background()); err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if len(cache.saved["test1"]) != 1 {
		t.Fatalf("history not cached: %+v", cache.saved)
	}

	b.historyErr = &gateway.TransportError{Op: gateway.OpChatHistory, Kind: gateway.KindNetworkUnreachable}
	convs, err := c.FetchHistory(context.Background())
	if err != nil || len(convs) != 1 {
		t.Errorf("FetchHistory() from cache = %v, %v", convs, err)
	}
}

func TestRequestCrawl(t *testing.T) {
	sites := &fakeSites{}
	c := newTestController(&fakeBackend{}, sites)
	info := domain.SiteInfo{DomainURL: "https://example.com/", HostName: "example", DomainLimit: "example.com/"}

	if _, err := c.RequestCrawl(context.Background(), info); err != nil {
		t.Fatalf("RequestCrawl() error = %v", err)
	}
	snap := c.Snapshot()
	if snap.State != StateIdle || snap.Pending != PendingNone || snap.Notice != msgCrawlStarted {
		t.Errorf("after crawl: %+v", snap)
	}

	sites.err = domain.ErrAlreadyAnalyzed
	if _, err := c.RequestCrawl(context.Background(), info); !errors.Is(err, domain.ErrAlreadyAnalyzed) {
		t.Errorf("RequestCrawl() error = %v, want ErrAlreadyAnalyzed", err)
	}
	if snap = c.Snapshot(); snap.Notice != msgAlreadyAnalyzed || snap.LastError != "" {
		t.Errorf("duplicate crawl should be a notice: %+v", snap)
	}
}

func TestRequestCrawlKeepsReadyState(t *testing.T) {
	c := readyController(t, &fakeBackend{})
	if _, err := c.RequestCrawl(context.Background(), domain.SiteInfo{DomainURL: "https://example.org/"}); err != nil {
		t.Fatalf("RequestCrawl() error = %v", err)
	}
	if snap := c.Snapshot(); snap.State != StateReady {
		t.Errorf("state = %s, crawling must not move the session", snap.State)
	}
}
