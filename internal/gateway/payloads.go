package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
)

// ─────────────────────────────
// Requests
// ─────────────────────────────

type crawlRequest struct {
	WebURL      string `json:"web_url"`
	CompanyName string `json:"company_name"`
	DomainLimit string `json:"domain_limit"`
}

type initializeRequest struct {
	WebURL       string `json:"web_url"`
	LoadFromDisk bool   `json:"load_from_disk"`
}

type queryRequest struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	WebURL         string `json:"web_url"`
	HostName       string `json:"host_name"`
	HostLogo       string `json:"host_logo"`
}

type websiteInfoRequest struct {
	DomainName string `json:"domainName"`
}

type historyRequest struct {
	UserID string `json:"user_id"`
}

// ─────────────────────────────
// Responses
// ─────────────────────────────

// statusReply is the envelope shared by crawl, initialize and get_website_info.
type statusReply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type initializeResponse struct {
	statusReply
	RecommendedQuestions json.RawMessage  `json:"recommended_questions"`
	AnalysisInfo         *analysisPayload `json:"website_analysis_info"`
}

type analysisPayload struct {
	VisitedURLs   urlCount `json:"visited_urls"`
	CrawlFinished bool     `json:"crawl_finished"`
}

type queryResponse struct {
	Answer *string `json:"answer"`
}

type websiteInfoResponse struct {
	statusReply
	Data *siteStatsPayload `json:"data"`
}

type siteStatsPayload struct {
	VisitedURLs urlCount           `json:"visited_urls"`
	DomainURLs  map[string]int     `json:"domain_urls"`
	FailedURLs  []failedURLPayload `json:"failed_urls"`
	CrawlTime   backendTime        `json:"crawl_time"`
	CompanyName string             `json:"company_name"`
	DomainLimit string             `json:"domain_limit"`
}

func (p siteStatsPayload) toStats() domain.SiteStats {
	return domain.SiteStats{
		VisitedCount: int(p.VisitedURLs),
		DomainCounts: p.DomainURLs,
		FailedURLs:   toFailedURLs(p.FailedURLs),
		CrawlTime:    time.Time(p.CrawlTime),
		CompanyName:  p.CompanyName,
		DomainLimit:  p.DomainLimit,
	}
}

// sitePayload is one entry of get_websites.
type sitePayload struct {
	StartURLs     []string           `json:"start_urls"`
	DomainURL     string             `json:"domain_url"`
	CompanyName   string             `json:"company_name"`
	HostLogo      string             `json:"host_logo"`
	DomainLimit   string             `json:"domain_limit"`
	VisitedURLs   urlCount           `json:"visited_urls"`
	DomainURLs    map[string]int     `json:"domain_urls"`
	FailedURLs    []failedURLPayload `json:"failed_urls"`
	CrawlFinished bool               `json:"crawl_finished"`
	CrawlTime     backendTime        `json:"crawl_time"`
}

// toSite returns false when the entry carries no start URL.
func (p sitePayload) toSite() (domain.Site, bool) {
	start := p.DomainURL
	if len(p.StartURLs) > 0 && strings.TrimSpace(p.StartURLs[0]) != "" {
		start = p.StartURLs[0]
	}
	start = domain.AddHTTPS(start)
	if start == "" {
		return domain.Site{}, false
	}

	hostName := p.CompanyName
	if hostName == "" {
		if info, err := domain.DeriveSiteInfoFromURL(start); err == nil {
			hostName = info.HostName
		}
	}
	logo := p.HostLogo
	if logo == "" {
		logo = domain.FaviconURL(start)
	}

	return domain.Site{
		DomainURL:        start,
		HostName:         hostName,
		HostLogo:         logo,
		DomainLimit:      p.DomainLimit,
		VisitedCount:     int(p.VisitedURLs),
		DomainCounts:     p.DomainURLs,
		FailedURLs:       toFailedURLs(p.FailedURLs),
		AnalysisFinished: p.CrawlFinished,
		CrawlTime:        time.Time(p.CrawlTime),
	}, true
}

type historyEntry struct {
	ConversationID string           `json:"conversation_id"`
	Conversation   []historyMessage `json:"conversation"`
	Timestamp      backendTime      `json:"timestamp"`
	HostName       string           `json:"host_name"`
	HostLogo       string           `json:"host_logo"`
	HostURL        string           `json:"host_url"`
}

// historyMessage accepts both "role" and the backend's historical "rule" key.
type historyMessage struct {
	Role    string `json:"role"`
	Rule    string `json:"rule"`
	Content string `json:"content"`
}

func (e historyEntry) toConversation() domain.Conversation {
	msgs := make([]domain.Message, 0, len(e.Conversation))
	for _, m := range e.Conversation {
		role := m.Role
		if role == "" {
			role = m.Rule
		}
		r := domain.RoleAssistant
		if strings.EqualFold(role, string(domain.RoleUser)) {
			r = domain.RoleUser
		}
		msgs = append(msgs, domain.Message{Role: r, Content: m.Content})
	}

	hostURL := domain.AddHTTPS(e.HostURL)
	logo := e.HostLogo
	if logo == "" && hostURL != "" {
		logo = domain.FaviconURL(hostURL)
	}

	return domain.Conversation{
		ID:        e.ConversationID,
		SiteRef:   hostURL,
		Messages:  msgs,
		Timestamp: time.Time(e.Timestamp),
		Site: &domain.SiteMeta{
			HostURL:  hostURL,
			HostName: e.HostName,
			HostLogo: logo,
		},
	}
}

// ─────────────────────────────
// Lenient field decoders
// ─────────────────────────────

// urlCount decodes either a list of URLs (its length) or a plain number.
type urlCount int

func (c *urlCount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*c = 0
		return nil
	case b[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*c = urlCount(len(items))
		return nil
	default:
		var n int
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("visited_urls: %w", err)
		}
		*c = urlCount(n)
		return nil
	}
}

// failedURLPayload decodes a [url, reason] pair or a {"url", "reason"} object.
type failedURLPayload domain.FailedURL

func (f *failedURLPayload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var pair []string
		if err := json.Unmarshal(b, &pair); err != nil {
			return fmt.Errorf("failed_urls: %w", err)
		}
		if len(pair) > 0 {
			f.URL = pair[0]
		}
		if len(pair) > 1 {
			f.Reason = pair[1]
		}
		return nil
	}

	var obj struct {
		URL    string `json:"url"`
		Reason string `json:"reason"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("failed_urls: %w", err)
	}
	f.URL = obj.URL
	f.Reason = obj.Reason
	if f.Reason == "" {
		f.Reason = obj.Error
	}
	return nil
}

func toFailedURLs(in []failedURLPayload) []domain.FailedURL {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.FailedURL, len(in))
	for i, f := range in {
		out[i] = domain.FailedURL(f)
	}
	return out
}

// backendTime accepts the timestamp layouts the backend emits.
// Unknown layouts decode to the zero time rather than failing the whole reply.
type backendTime time.Time

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *backendTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	if b[0] != '"' {
		var secs float64
		if err := json.Unmarshal(b, &secs); err != nil {
			return nil
		}
		*t = backendTime(time.Unix(0, int64(secs*float64(time.Second))))
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			*t = backendTime(parsed)
			return nil
		}
	}
	return nil
}
