package monitor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	customerrors "github.com/axellelanca/shortlink/internal/errors"
	"github.com/axellelanca/shortlink/internal/logger"
	"github.com/axellelanca/shortlink/internal/repository"
)

// pageSize is how many links one sweep reads at a time.
const pageSize = 100

// StateChange records a target URL that became (in)accessible since the last sweep.
type StateChange struct {
	Code       string
	TargetURL  string
	Accessible bool
}

// UrlMonitor periodically checks that target URLs still answer. It only reads
// links and never touches click counters.
type UrlMonitor struct {
	linkRepo    repository.LinkRepository
	schedule    string
	knownStates map[uint]bool // link ID -> accessible at last sweep
	mu          sync.Mutex
	httpClient  *http.Client
	cron        *cron.Cron
	sweeps      sync.WaitGroup // sweeps started outside cron
}

// NewUrlMonitor creates a monitor running on the given cron schedule
// (e.g. "@every 5m"). requestTimeout bounds each HEAD request.
func NewUrlMonitor(linkRepo repository.LinkRepository, schedule string, requestTimeout time.Duration) *UrlMonitor {
	return &UrlMonitor{
		linkRepo:    linkRepo,
		schedule:    schedule,
		knownStates: make(map[uint]bool),
		httpClient: &http.Client{
			Timeout: requestTimeout,
			// A redirecting target is still reachable.
			CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
		},
	}
}

// Start schedules the sweeps and runs a first one immediately in the background.
func (m *UrlMonitor) Start(ctx context.Context) error {
	ctx = logger.IntoContext(ctx, logger.Default().With("component", "monitor"))

	m.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := m.cron.AddFunc(m.schedule, func() { m.CheckUrls(ctx) }); err != nil {
		return err
	}
	m.cron.Start()

	m.sweeps.Add(1)
	go func() {
		defer m.sweeps.Done()
		m.CheckUrls(ctx)
	}()

	logger.FromContext(ctx).Info("url monitor started", "schedule", m.schedule)
	return nil
}

// Stop stops scheduling and waits for running sweeps, including the one
// started by Start, to finish or for ctx to expire.
func (m *UrlMonitor) Stop(ctx context.Context) {
	if m.cron == nil {
		return
	}
	cronDone := m.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		m.sweeps.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// CheckUrls sweeps every link and returns the links whose accessibility
// changed since the previous sweep. First observations are not changes.
func (m *UrlMonitor) CheckUrls(ctx context.Context) []StateChange {
	log := logger.FromContext(ctx)
	var changes []StateChange

	for offset := 0; ; offset += pageSize {
		links, err := m.linkRepo.ListLinks(ctx, offset, pageSize)
		if err != nil {
			log.Error("failed to list links for monitoring", "err", err)
			return changes
		}

		for _, link := range links {
			currentState := true
			if err := m.check(ctx, link.TargetURL); err != nil {
				log.Debug("target not accessible", "code", link.Code, "err", err)
				currentState = false
			}

			m.mu.Lock()
			previousState, exists := m.knownStates[link.ID]
			m.knownStates[link.ID] = currentState
			m.mu.Unlock()

			if exists && previousState != currentState {
				log.Warn("target accessibility changed",
					"code", link.Code, "target_url", link.TargetURL,
					"from", formatState(previousState), "to", formatState(currentState))
				changes = append(changes, StateChange{Code: link.Code, TargetURL: link.TargetURL, Accessible: currentState})
			}
		}

		if len(links) < pageSize {
			break
		}
	}
	return changes
}

// check sends a HEAD request; 2xx and 3xx count as accessible.
func (m *UrlMonitor) check(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return customerrors.ErrURLCheckFailed{URL: url, Reason: err.Error()}
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return customerrors.ErrURLCheckFailed{URL: url, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return customerrors.ErrURLCheckFailed{URL: url, Reason: resp.Status}
	}
	return nil
}

func formatState(accessible bool) string {
	if accessible {
		return "ACCESSIBLE"
	}
	return "INACCESSIBLE"
}
