package deps

import (
	"time"

	"github.com/MrSnakeDoc/asksite/internal/gateway"
	"github.com/MrSnakeDoc/asksite/internal/logger"
	"github.com/MrSnakeDoc/asksite/internal/registry"
	"github.com/MrSnakeDoc/asksite/internal/session"
	redisstore "github.com/MrSnakeDoc/asksite/internal/store/redis"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	AllowedHosts   []string      // Host headers allowed to access the API
	AllowedCIDRS   []string      // client IPs allowed to access the API
	TrustProxy     bool          // true if running behind a trusted reverse proxy
	AllowedOrigins []string      // CORS origins (extension pages, injected widgets)
	RateBurst      int           // per-IP burst on query / crawl routes
	RatePerMin     int           // per-IP refill on query / crawl routes
	RequestTimeout time.Duration // backend call timeout, the API waits a bit longer
	MinPagesToChat int           // visited pages required before chatting with an unfinished crawl

	Session       *session.Controller
	Registry      *registry.Registry
	Gateway       *gateway.Gateway
	Store         *redisstore.Store // nil when the snapshot cache is disabled
	ReloadTrigger chan struct{}     // Channel to trigger a manual site list reload
}
