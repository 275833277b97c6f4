package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/asksite/internal/domain"
	"github.com/MrSnakeDoc/asksite/internal/logger"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSource) Refresh(context.Context) ([]domain.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Site{{DomainURL: "https://a.example/"}}, nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSiteReloader_ManualTrigger(t *testing.T) {
	src := &fakeSource{}
	trigger := make(chan struct{}, 1)
	sr := NewSiteReloader(src, logger.New("error", false), time.Hour, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sr.Stop()

	if got := src.count(); got != 1 {
		t.Fatalf("Expected 1 refresh on start, got %d", got)
	}

	trigger <- struct{}{}
	deadline := time.Now().Add(2 * time.Second)
	for src.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("manual trigger did not cause a refresh")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSiteReloader_StartToleratesBackendDown(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	sr := NewSiteReloader(src, logger.New("error", false), time.Hour, make(chan struct{}))

	if err := sr.Start(context.Background()); err != nil {
		t.Fatalf("Start should not fail when the backend is down: %v", err)
	}
	sr.Stop()
	sr.Stop()
}

type fakeTracker struct {
	urls      []string
	failing   map[string]bool
	refreshed []string
	pruned    time.Duration
}

func (f *fakeTracker) TrackedCrawls() []string { return f.urls }

func (f *fakeTracker) RefreshStats(_ context.Context, u string) (*domain.Site, error) {
	if f.failing[u] {
		return nil, errors.New("timeout")
	}
	f.refreshed = append(f.refreshed, u)
	return &domain.Site{DomainURL: u, VisitedCount: 12}, nil
}

func (f *fakeTracker) PruneStale(staleAfter time.Duration) []string {
	f.pruned = staleAfter
	return []string{"https://done.example/"}
}

func TestCrawlMonitor_Poll(t *testing.T) {
	tracker := &fakeTracker{
		urls:    []string{"https://a.example/", "https://b.example/", "https://c.example/"},
		failing: map[string]bool{"https://b.example/": true},
	}
	cm := NewCrawlMonitor(tracker, logger.New("error", false), time.Minute, 0)

	got := cm.Poll(context.Background())

	if got != 2 {
		t.Errorf("Expected 2 refreshed sites, got %d", got)
	}
	if len(tracker.refreshed) != 2 || tracker.refreshed[0] != "https://a.example/" || tracker.refreshed[1] != "https://c.example/" {
		t.Errorf("Unexpected refreshed sites: %v", tracker.refreshed)
	}
	if tracker.pruned != DefaultStaleAfter {
		t.Errorf("Expected prune with %v, got %v", DefaultStaleAfter, tracker.pruned)
	}
}

func TestCrawlMonitor_PollNothingTracked(t *testing.T) {
	tracker := &fakeTracker{}
	cm := NewCrawlMonitor(tracker, logger.New("error", false), time.Minute, time.Hour)

	if got := cm.Poll(context.Background()); got != 0 {
		t.Errorf("Expected 0 refreshed sites, got %d", got)
	}
	if tracker.pruned != 0 {
		t.Error("PruneStale should not run when nothing is tracked")
	}
}

type fakeSnapshot struct {
	sites []domain.Site
	err   error
}

func (f *fakeSnapshot) LoadSites(context.Context) ([]domain.Site, error) {
	return f.sites, f.err
}

type fakeIndex struct {
	sites []domain.Site
}

func (f *fakeIndex) Count() int                  { return len(f.sites) }
func (f *fakeIndex) Replace(sites []domain.Site) { f.sites = sites }

func TestSiteSyncer_Sync(t *testing.T) {
	log := logger.New("error", false)
	snapshot := &fakeSnapshot{sites: []domain.Site{
		{DomainURL: "https://a.example/"},
		{DomainURL: "https://b.example/"},
	}}

	t.Run("empty registry is filled", func(t *testing.T) {
		idx := &fakeIndex{}
		if err := NewSiteSyncer(snapshot, idx, log).Sync(context.Background()); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if idx.Count() != 2 {
			t.Errorf("Expected 2 sites, got %d", idx.Count())
		}
	})

	t.Run("populated registry is kept", func(t *testing.T) {
		idx := &fakeIndex{sites: []domain.Site{{DomainURL: "https://fresh.example/"}}}
		if err := NewSiteSyncer(snapshot, idx, log).Sync(context.Background()); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}
		if idx.Count() != 1 || idx.sites[0].DomainURL != "https://fresh.example/" {
			t.Errorf("Registry was overwritten: %v", idx.sites)
		}
	})

	t.Run("load error is returned", func(t *testing.T) {
		idx := &fakeIndex{}
		err := NewSiteSyncer(&fakeSnapshot{err: errors.New("redis down")}, idx, log).Sync(context.Background())
		if err == nil {
			t.Fatal("Expected error from Sync")
		}
	})
}
