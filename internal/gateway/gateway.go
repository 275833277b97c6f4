package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/logger"
	"github.com/MrSnakeDoc/asksite/internal/metrics"
	"github.com/MrSnakeDoc/asksite/internal/version"
)

const maxBodyBytes = 8 << 20

// Backend operation names, used in errors, logs and metrics.
const (
	OpCrawl        = "crawl"
	OpInitialize   = "initialize"
	OpQuery        = "query"
	OpWebsiteInfo  = "get_website_info"
	OpListWebsites = "get_websites"
	OpChatHistory  = "get_chat_history"
	OpPing         = "ping"
)

type Options struct {
	BaseURL string        // ex: http://localhost:7777
	Timeout time.Duration // per call, 0 = no deadline beyond the caller's context
	Client  *http.Client  // optional
}

// Gateway is the single owner of outbound calls to the analysis backend.
// Every failure is returned as a *TransportError; nothing is retried.
type Gateway struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     logger.Logger
}

func New(opts Options, log logger.Logger) *Gateway {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Gateway{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		timeout: opts.Timeout,
		client:  client,
		log:     log.With(logger.String("component", "gateway")),
	}
}

// BaseURL returns the backend base URL.
func (g *Gateway) BaseURL() string { return g.baseURL }

// QueryRequest carries one question and the site context it is asked against.
type QueryRequest struct {
	UserID         string
	ConversationID string
	Query          string
	Site           domain.SiteMeta
}

// CrawlReceipt is the backend's acknowledgement of a crawl request.
// Crawling itself continues out of band.
type CrawlReceipt struct {
	Accepted bool
	Message  string
}

// Crawl asks the backend to start analyzing a site. It does not wait for the crawl.
func (g *Gateway) Crawl(ctx context.Context, info domain.SiteInfo) (receipt CrawlReceipt, err error) {
	defer g.observe(OpCrawl, time.Now(), &err)

	body, err := g.call(ctx, OpCrawl, http.MethodPost, "/crawl", crawlRequest{
		WebURL:      domain.AddHTTPS(info.DomainURL),
		CompanyName: info.HostName,
		DomainLimit: domain.AddHTTPS(info.DomainLimit),
	})
	if err != nil {
		return CrawlReceipt{}, err
	}

	var reply statusReply
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &reply); err != nil {
			return CrawlReceipt{}, malformed(OpCrawl, "%v", err)
		}
	}
	if reply.Status != "" && reply.Status != "success" {
		return CrawlReceipt{}, &TransportError{Op: OpCrawl, Kind: KindRejected, Message: rejectMessage(reply)}
	}
	return CrawlReceipt{Accepted: true, Message: reply.Message}, nil
}

// Initialize binds a question-answering session on the backend to a site.
// not_found and failure replies are outcomes, not errors.
func (g *Gateway) Initialize(ctx context.Context, domainURL string, loadFromDisk bool) (out domain.InitOutcome, err error) {
	defer g.observe(OpInitialize, time.Now(), &err)

	body, err := g.call(ctx, OpInitialize, http.MethodPost, "/initialize_rag", initializeRequest{
		WebURL:       domain.AddHTTPS(domainURL),
		LoadFromDisk: loadFromDisk,
	})

	// A 404 with a tagged body is still a not_found outcome.
	var te *TransportError
	if errors.As(err, &te) && te.Kind == KindHTTPError && te.Status == http.StatusNotFound && len(body) > 0 {
		var reply statusReply
		if json.Unmarshal(body, &reply) == nil && reply.Status == string(domain.InitNotFound) {
			return domain.InitOutcome{Status: domain.InitNotFound, Message: reply.Message}, nil
		}
	}
	if err != nil {
		return domain.InitOutcome{}, err
	}

	var resp initializeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.InitOutcome{}, malformed(OpInitialize, "%v", err)
	}

	switch resp.Status {
	case "success":
		questions, err := parseQuestions(resp.RecommendedQuestions)
		if err != nil {
			return domain.InitOutcome{}, malformed(OpInitialize, "%v", err)
		}
		out := domain.InitOutcome{Status: domain.InitSuccess, Questions: questions}
		if resp.AnalysisInfo != nil {
			out.Analysis = domain.AnalysisInfo{
				VisitedCount:  int(resp.AnalysisInfo.VisitedURLs),
				CrawlFinished: resp.AnalysisInfo.CrawlFinished,
			}
		}
		return out, nil
	case "not_found":
		return domain.InitOutcome{Status: domain.InitNotFound, Message: resp.Message}, nil
	case "":
		return domain.InitOutcome{}, malformed(OpInitialize, "missing status")
	default:
		return domain.InitOutcome{Status: domain.InitFailure, Message: rejectMessage(resp.statusReply)}, nil
	}
}

// Query asks one question and returns the backend's answer verbatim.
func (g *Gateway) Query(ctx context.Context, q QueryRequest) (answer string, err error) {
	defer g.observe(OpQuery, time.Now(), &err)

	body, err := g.call(ctx, OpQuery, http.MethodPost, "/query", queryRequest{
		UserID:         q.UserID,
		ConversationID: q.ConversationID,
		Query:          q.Query,
		WebURL:         q.Site.HostURL,
		HostName:       q.Site.HostName,
		HostLogo:       q.Site.HostLogo,
	})
	if err != nil {
		return "", err
	}

	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", malformed(OpQuery, "%v", err)
	}
	if resp.Answer == nil {
		return "", malformed(OpQuery, "missing answer")
	}
	return *resp.Answer, nil
}

// GetWebsiteInfo polls the crawl progress of one site.
func (g *Gateway) GetWebsiteInfo(ctx context.Context, domainURL string) (stats domain.SiteStats, err error) {
	defer g.observe(OpWebsiteInfo, time.Now(), &err)

	body, err := g.call(ctx, OpWebsiteInfo, http.MethodPost, "/get_website_info", websiteInfoRequest{
		DomainName: domain.AddHTTPS(domainURL),
	})
	if err != nil {
		return domain.SiteStats{}, err
	}

	var resp websiteInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.SiteStats{}, malformed(OpWebsiteInfo, "%v", err)
	}
	if resp.Status != "success" {
		return domain.SiteStats{}, &TransportError{Op: OpWebsiteInfo, Kind: KindRejected, Message: rejectMessage(resp.statusReply)}
	}
	if resp.Data == nil {
		return domain.SiteStats{}, malformed(OpWebsiteInfo, "missing data")
	}
	return resp.Data.toStats(), nil
}

// ListWebsites returns every site the backend knows, in backend order.
func (g *Gateway) ListWebsites(ctx context.Context) (sites []domain.Site, err error) {
	defer g.observe(OpListWebsites, time.Now(), &err)

	body, err := g.call(ctx, OpListWebsites, http.MethodGet, "/get_websites", nil)
	if err != nil {
		return nil, err
	}

	var entries []sitePayload
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, malformed(OpListWebsites, "%v", err)
	}

	sites = make([]domain.Site, 0, len(entries))
	for i, e := range entries {
		site, ok := e.toSite()
		if !ok {
			g.log.Debug("skipping site without start url", logger.Int("index", i))
			continue
		}
		sites = append(sites, site)
	}
	return sites, nil
}

// GetChatHistory returns the stored conversations of a user.
func (g *Gateway) GetChatHistory(ctx context.Context, userID string) (convs []domain.Conversation, err error) {
	defer g.observe(OpChatHistory, time.Now(), &err)

	body, err := g.call(ctx, OpChatHistory, http.MethodPost, "/get_chat_history", historyRequest{UserID: userID})
	if err != nil {
		return nil, err
	}

	var entries []historyEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, malformed(OpChatHistory, "%v", err)
	}

	convs = make([]domain.Conversation, 0, len(entries))
	for _, e := range entries {
		if e.ConversationID == "" {
			continue
		}
		convs = append(convs, e.toConversation())
	}
	return convs, nil
}

// Ping checks that the backend answers HTTP at all. Any status counts as reachable.
func (g *Gateway) Ping(ctx context.Context) (err error) {
	defer g.observe(OpPing, time.Now(), &err)

	_, err = g.call(ctx, OpPing, http.MethodGet, "/", nil)
	var te *TransportError
	if errors.As(err, &te) && te.Kind == KindHTTPError {
		return nil
	}
	return err
}

// call issues one request and returns the raw body.
// Non-2xx replies return the body together with a KindHTTPError.
func (g *Gateway) call(ctx context.Context, op, method, path string, in any) ([]byte, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, &TransportError{Op: op, Kind: KindMalformedResponse, Message: "encoding request", Err: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Kind: KindNetworkUnreachable, Err: fmt.Errorf("creating request: %w", err)}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, transportFailure(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, transportFailure(op, err)
	}

	g.log.Debug("backend call",
		logger.String("op", op),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &TransportError{Op: op, Kind: KindHTTPError, Status: resp.StatusCode, Message: errorDetail(body)}
	}
	return body, nil
}

func (g *Gateway) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = string(KindOf(*errp))
		g.log.Warn("backend call failed",
			logger.String("op", op),
			logger.String("kind", outcome),
			logger.Error(*errp),
		)
	}
	metrics.ObserveGateway(op, outcome, time.Since(start))
}

// errorDetail extracts a short message from an error body.
func errorDetail(body []byte) string {
	var env struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func rejectMessage(r statusReply) string {
	if r.Message != "" {
		return r.Message
	}
	return "backend replied with status " + r.Status
}
