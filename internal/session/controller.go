package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/gateway"
	"github.com/MrSnakeDoc/asksite/internal/logger"
	"github.com/MrSnakeDoc/asksite/internal/metrics"
)

// Backend is the subset of the gateway the controller calls.
type Backend interface {
	Initialize(ctx context.Context, domainURL string, loadFromDisk bool) (domain.InitOutcome, error)
	Query(ctx context.Context, q gateway.QueryRequest) (string, error)
	GetChatHistory(ctx context.Context, userID string) ([]domain.Conversation, error)
}

// Sites is the subset of the registry the controller calls.
type Sites interface {
	Register(ctx context.Context, info domain.SiteInfo) (gateway.CrawlReceipt, error)
	Lookup(domainURL string) *domain.Site
}

// HistoryCache keeps the last fetched chat history per user. Optional.
type HistoryCache interface {
	SaveHistory(ctx context.Context, userID string, convs []domain.Conversation) error
	LoadHistory(ctx context.Context, userID string) ([]domain.Conversation, error)
}

type Options struct {
	UserID         string
	MinPagesToChat int
}

// Controller is the session state machine. It is the only writer of the
// active conversation, the pending operation and the bound site.
//
// Backend calls are made outside the lock. The pending flag is the mutual
// exclusion between operations: a conflicting call is rejected, never queued.
// A result that comes back after the conversation was replaced only clears
// the pending flag.
type Controller struct {
	mu sync.Mutex

	state     State
	pending   PendingOp
	conv      *domain.Conversation
	gen       uint64 // bumped every time conv is replaced
	site      *domain.Site
	welcome   *Welcome
	lastError string
	notice    string
	suggest   bool

	initPages   int             // visited pages reported by the last successful initialize
	initialized map[string]bool // SiteKeys initialized during this process
	history     []domain.Conversation

	backend Backend
	sites   Sites
	cache   HistoryCache
	opts    Options
	logger  logger.Logger
}

func New(backend Backend, sites Sites, cache HistoryCache, opts Options, log logger.Logger) *Controller {
	return &Controller{
		state:       StateIdle,
		pending:     PendingNone,
		conv:        domain.NewConversation(""),
		initialized: make(map[string]bool),
		backend:     backend,
		sites:       sites,
		cache:       cache,
		opts:        opts,
		logger:      log.With(logger.String("component", "session")),
	}
}

// Snapshot returns a copy of the session for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:          c.state,
		Pending:        c.pending,
		Conversation:   c.conv.Clone(),
		BoundSite:      c.site.Clone(),
		LastError:      c.lastError,
		Notice:         c.notice,
		CrawlSuggested: c.suggest,
	}
	if c.welcome != nil {
		w := *c.welcome
		w.Questions = append([]string{}, c.welcome.Questions...)
		s.Welcome = &w
	}
	if c.site != nil {
		latest := c.site
		if known := c.sites.Lookup(c.site.DomainURL); known != nil {
			latest = known
		}
		s.ChatReady = latest.ChatReady(c.opts.MinPagesToChat)
		s.ReembedAvailable = c.state == StateReady &&
			!latest.AnalysisFinished &&
			latest.VisitedCount > c.initPages
	}
	return s
}

func (c *Controller) transitionLocked(op string, state State, pending PendingOp) {
	c.state = state
	c.pending = pending
	c.logger.Info("session transition",
		logger.String("op", op),
		logger.String("conversation_id", c.conv.ID),
		logger.String("state", string(state)),
		logger.String("pending", string(pending)))
}

// replaceConversationLocked installs conv as the active conversation.
func (c *Controller) replaceConversationLocked(conv *domain.Conversation, site *domain.Site) {
	c.conv = conv
	c.gen++
	c.site = site
	c.welcome = nil
	c.lastError = ""
	c.notice = ""
	c.suggest = false
	c.initPages = 0
}

// StartNewConversation replaces the conversation with an empty one bound to
// site and, when site is not nil, binds it. Allowed from any state; if another
// call is outstanding the new conversation stays Idle and the bind is
// rejected with ErrOperationInProgress.
func (c *Controller) StartNewConversation(ctx context.Context, site *domain.Site) (Snapshot, error) {
	c.mu.Lock()
	site = site.Clone()
	ref := ""
	if site != nil {
		site.DomainURL = domain.AddHTTPS(site.DomainURL)
		if site.HostLogo == "" {
			site.HostLogo = domain.FaviconURL(site.DomainURL)
		}
		ref = site.DomainURL
	}
	c.replaceConversationLocked(domain.NewConversation(ref), site)
	c.transitionLocked("start_new_conversation", StateIdle, c.pending)
	busy := c.pending != PendingNone
	c.mu.Unlock()

	metrics.ObserveSession("start_new_conversation", "ok")

	if site == nil {
		return c.Snapshot(), nil
	}
	if busy {
		return c.Snapshot(), ErrOperationInProgress
	}
	return c.bind(ctx, "bind", site, true)
}

// BindToSite initializes a backend session for site on the active conversation.
func (c *Controller) BindToSite(ctx context.Context, site *domain.Site) (Snapshot, error) {
	if site == nil {
		return c.Snapshot(), ErrNoSite
	}
	site = site.Clone()
	site.DomainURL = domain.AddHTTPS(site.DomainURL)
	if site.HostLogo == "" {
		site.HostLogo = domain.FaviconURL(site.DomainURL)
	}
	return c.bind(ctx, "bind", site, true)
}

// Retry re-runs the failed bind for the retained site.
func (c *Controller) Retry(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	if c.state != StateFailed {
		c.mu.Unlock()
		return c.Snapshot(), ErrNothingToRetry
	}
	site := c.site.Clone()
	c.mu.Unlock()

	if site == nil {
		return c.Snapshot(), ErrNoSite
	}
	return c.bind(ctx, "retry", site, true)
}

// Reembed re-initializes the bound site from scratch instead of the disk index,
// picking up pages crawled since the last initialize.
func (c *Controller) Reembed(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	site := c.site.Clone()
	c.mu.Unlock()

	if site == nil {
		return c.Snapshot(), ErrNoSite
	}
	return c.bind(ctx, "reembed", site, false)
}

func (c *Controller) bind(ctx context.Context, op string, site *domain.Site, loadFromDisk bool) (Snapshot, error) {
	c.mu.Lock()
	if c.pending != PendingNone {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		metrics.ObserveSession(op, "rejected")
		return snap, ErrOperationInProgress
	}
	if c.switchesSiteLocked(site) {
		c.replaceConversationLocked(domain.NewConversation(site.DomainURL), site)
	}
	c.site = site
	c.conv.SiteRef = site.DomainURL
	c.lastError = ""
	c.notice = ""
	c.suggest = false
	c.transitionLocked(op, StateInitializing, PendingInitializing)
	gen := c.gen
	c.mu.Unlock()

	out, err := c.backend.Initialize(context.WithoutCancel(ctx), site.DomainURL, loadFromDisk)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.pending = PendingNone
		c.logger.Info("discarding initialize result for a replaced conversation",
			logger.String("domain_url", site.DomainURL))
		metrics.ObserveSession(op, "discarded")
		return c.snapshotLocked(), nil
	}

	switch {
	case err != nil:
		c.lastError = initErrorMessage(err)
		c.transitionLocked(op, StateFailed, PendingNone)
		c.logger.Warn("initialize failed", logger.String("domain_url", site.DomainURL), logger.Error(err))
		metrics.ObserveSession(op, "failed")

	case out.Status == domain.InitSuccess:
		c.welcome = newWelcome(site, out)
		c.initPages = out.Analysis.VisitedCount
		if out.Analysis.VisitedCount > c.site.VisitedCount {
			c.site.VisitedCount = out.Analysis.VisitedCount
		}
		c.site.AnalysisFinished = out.Analysis.CrawlFinished
		c.initialized[domain.SiteKey(site.DomainURL)] = true
		c.transitionLocked(op, StateReady, PendingNone)
		metrics.ObserveSession(op, "ok")

	case out.Status == domain.InitNotFound:
		c.notice = out.Message
		c.suggest = true
		c.transitionLocked(op, StateIdle, PendingNone)
		metrics.ObserveSession(op, "not_found")

	default:
		c.lastError = out.Message
		if c.lastError == "" {
			c.lastError = msgInitFailed
		}
		c.transitionLocked(op, StateFailed, PendingNone)
		metrics.ObserveSession(op, "failed")
	}

	return c.snapshotLocked(), nil
}

// switchesSiteLocked reports whether binding site would move the active
// conversation to another site. A conversation never spans two sites.
func (c *Controller) switchesSiteLocked(site *domain.Site) bool {
	if c.conv.SiteRef == "" {
		return len(c.conv.Messages) > 0
	}
	return domain.SiteKey(c.conv.SiteRef) != domain.SiteKey(site.DomainURL)
}

func initErrorMessage(err error) string {
	switch gateway.KindOf(err) {
	case gateway.KindNetworkUnreachable, gateway.KindTimeout:
		return msgCannotConnect
	default:
		return msgInitFailed + ": " + err.Error()
	}
}

// SubmitQuery appends text as a user message, asks the backend and appends
// the answer, or an error explanation, as an assistant message.
func (c *Controller) SubmitQuery(ctx context.Context, text string) (Snapshot, error) {
	c.mu.Lock()
	switch {
	case c.pending != PendingNone:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		metrics.ObserveSession("submit_query", "rejected")
		return snap, ErrOperationInProgress
	case c.state != StateReady:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		metrics.ObserveSession("submit_query", "rejected")
		return snap, ErrNotReady
	}

	query := strings.TrimSpace(text)
	if query == "" {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		metrics.ObserveSession("submit_query", "rejected")
		return snap, ErrEmptyQuery
	}

	// The user sees their own message before the answer arrives.
	c.conv.Append(domain.RoleUser, query)
	c.transitionLocked("submit_query", StateQuerying, PendingQuerying)
	gen := c.gen
	req := gateway.QueryRequest{
		UserID:         c.opts.UserID,
		ConversationID: c.conv.ID,
		Query:          query,
		Site: domain.SiteMeta{
			HostURL:  c.site.DomainURL,
			HostName: c.site.HostName,
			HostLogo: c.site.HostLogo,
		},
	}
	c.mu.Unlock()

	answer, err := c.backend.Query(context.WithoutCancel(ctx), req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.pending = PendingNone
		c.logger.Info("discarding answer for a replaced conversation",
			logger.String("conversation_id", req.ConversationID))
		metrics.ObserveSession("submit_query", "discarded")
		return c.snapshotLocked(), nil
	}

	if err != nil {
		c.conv.Append(domain.RoleAssistant, msgQueryErrorPrefix+err.Error())
		c.logger.Warn("query failed",
			logger.String("conversation_id", req.ConversationID),
			logger.Error(err))
		metrics.ObserveSession("submit_query", "failed")
	} else {
		c.conv.Append(domain.RoleAssistant, answer)
		metrics.ObserveSession("submit_query", "ok")
	}
	c.transitionLocked("submit_query", StateReady, PendingNone)

	return c.snapshotLocked(), nil
}

// FetchHistory fetches the user's stored conversations, newest first, and
// keeps them for LoadHistoricalConversation. When the backend cannot be
// reached the cached copy is served, if any.
func (c *Controller) FetchHistory(ctx context.Context) ([]domain.Conversation, error) {
	convs, err := c.backend.GetChatHistory(ctx, c.opts.UserID)
	if err != nil {
		if c.cache == nil {
			return nil, err
		}
		cached, cerr := c.cache.LoadHistory(ctx, c.opts.UserID)
		if cerr != nil || cached == nil {
			return nil, err
		}
		c.logger.Warn("serving cached chat history", logger.Error(err))
		convs = cached
	} else if c.cache != nil {
		if err := c.cache.SaveHistory(ctx, c.opts.UserID, convs); err != nil {
			c.logger.Warn("failed to cache chat history", logger.Error(err))
		}
	}

	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].Timestamp.After(convs[j].Timestamp)
	})

	c.mu.Lock()
	c.history = convs
	c.mu.Unlock()

	out := make([]domain.Conversation, len(convs))
	for i := range convs {
		out[i] = *convs[i].Clone()
	}
	return out, nil
}

// LoadHistoricalConversation replaces the active conversation with a stored one
// from the last fetched history and rebinds the site from its metadata. The
// conversation keeps its id so the thread can continue. The session is Ready
// only if that site was initialized during this process; otherwise the
// surface binds it first.
func (c *Controller) LoadHistoricalConversation(id string) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != PendingNone {
		metrics.ObserveSession("load_history", "rejected")
		return c.snapshotLocked(), ErrOperationInProgress
	}

	var found *domain.Conversation
	for i := range c.history {
		if c.history[i].ID == id {
			found = c.history[i].Clone()
			break
		}
	}
	if found == nil {
		metrics.ObserveSession("load_history", "not_found")
		return c.snapshotLocked(), ErrConversationNotFound
	}

	site := c.siteForHistory(found)
	c.replaceConversationLocked(found, site)

	state := StateIdle
	if site != nil && c.initialized[domain.SiteKey(site.DomainURL)] {
		state = StateReady
	}
	c.transitionLocked("load_history", state, PendingNone)
	metrics.ObserveSession("load_history", "ok")

	return c.snapshotLocked(), nil
}

func (c *Controller) siteForHistory(conv *domain.Conversation) *domain.Site {
	ref := conv.SiteRef
	if ref == "" && conv.Site != nil {
		ref = conv.Site.HostURL
	}
	if ref == "" {
		return nil
	}
	if known := c.sites.Lookup(ref); known != nil {
		return known
	}
	site := &domain.Site{DomainURL: domain.AddHTTPS(ref)}
	if conv.Site != nil {
		site.HostName = conv.Site.HostName
		site.HostLogo = conv.Site.HostLogo
	}
	if site.HostLogo == "" {
		site.HostLogo = domain.FaviconURL(site.DomainURL)
	}
	return site
}

// RequestCrawl asks the registry to start a crawl. Session state is left as is;
// the site becomes usable through a later bind. A duplicate request returns
// domain.ErrAlreadyAnalyzed and sets a notice.
func (c *Controller) RequestCrawl(ctx context.Context, info domain.SiteInfo) (gateway.CrawlReceipt, error) {
	c.mu.Lock()
	if c.pending != PendingNone {
		c.mu.Unlock()
		metrics.ObserveSession("request_crawl", "rejected")
		return gateway.CrawlReceipt{}, ErrOperationInProgress
	}
	c.transitionLocked("request_crawl", c.state, PendingCrawling)
	c.mu.Unlock()

	receipt, err := c.sites.Register(context.WithoutCancel(ctx), info)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.transitionLocked("request_crawl", c.state, PendingNone)
	switch {
	case errors.Is(err, domain.ErrAlreadyAnalyzed):
		c.notice = msgAlreadyAnalyzed
		metrics.ObserveSession("request_crawl", "already_analyzed")
	case err != nil:
		c.logger.Warn("crawl request failed", logger.String("domain_url", info.DomainURL), logger.Error(err))
		metrics.ObserveSession("request_crawl", "failed")
	default:
		c.notice = msgCrawlStarted
		c.suggest = false
		metrics.ObserveSession("request_crawl", "ok")
	}
	return receipt, err
}
