package session

import (
	"errors"

	"github.com/MrSnakeDoc/asksite/internal/domain"
)

// State is the controller's position in the session state machine.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateQuerying     State = "querying"
	StateFailed       State = "failed"
)

// PendingOp is the backend call currently outstanding. At most one at a time.
type PendingOp string

const (
	PendingNone         PendingOp = "none"
	PendingCrawling     PendingOp = "crawling"
	PendingInitializing PendingOp = "initializing"
	PendingQuerying     PendingOp = "querying"
)

var (
	ErrEmptyQuery           = errors.New("query is empty")
	ErrOperationInProgress  = errors.New("another operation is in progress")
	ErrNotReady             = errors.New("session is not ready")
	ErrNoSite               = errors.New("no site is bound to the session")
	ErrConversationNotFound = errors.New("conversation not found in history")
	ErrNothingToRetry       = errors.New("session has not failed, nothing to retry")
)

// User-facing texts.
const (
	greeting            = "Hello! Ask me anything about"
	msgCannotConnect    = "Unable to connect to the server. Please try again."
	msgInitFailed       = "Failed to initialize chat system"
	msgQueryErrorPrefix = "Error getting response: "
	msgAlreadyAnalyzed  = "This website has already been analyzed."
	msgCrawlStarted     = "Analysis started. You can start chatting once enough pages are indexed."
)

// Welcome is the content shown at the top of a freshly bound conversation.
type Welcome struct {
	Greeting  string              `json:"greeting"`
	HostName  string              `json:"host_name"`
	HostLogo  string              `json:"host_logo"`
	Questions []string            `json:"recommended_questions"`
	Analysis  domain.AnalysisInfo `json:"analysis"`
}

func newWelcome(site *domain.Site, out domain.InitOutcome) *Welcome {
	questions := out.Questions
	if questions == nil {
		questions = []string{}
	}
	return &Welcome{
		Greeting:  greeting,
		HostName:  site.HostName,
		HostLogo:  site.HostLogo,
		Questions: append([]string(nil), questions...),
		Analysis:  out.Analysis,
	}
}

// Snapshot is a read-only copy of the session for rendering.
type Snapshot struct {
	State        State                `json:"state"`
	Pending      PendingOp            `json:"pending_operation"`
	Conversation *domain.Conversation `json:"conversation"`
	BoundSite    *domain.Site         `json:"bound_site"`
	Welcome      *Welcome             `json:"welcome,omitempty"`

	// LastError is retained in the Failed state for display next to "Try Again".
	LastError string `json:"last_error,omitempty"`
	// Notice is a non-fatal message: a not_found reply or a duplicate crawl request.
	Notice string `json:"notice,omitempty"`
	// CrawlSuggested is set after a not_found reply so the surface can offer a crawl.
	CrawlSuggested bool `json:"crawl_suggested"`

	ChatReady        bool `json:"chat_ready"`
	ReembedAvailable bool `json:"reembed_available"`
}

// Busy reports whether a backend call is outstanding.
func (s Snapshot) Busy() bool {
	return s.Pending != PendingNone
}
