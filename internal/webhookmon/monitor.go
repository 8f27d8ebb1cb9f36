// Package webhookmon keeps the delivery webhook registration converged on
// the desired URL. External drift and backlog buildup are corrected by a
// periodic reconcile loop without operator intervention.
package webhookmon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/driphype/shopbot/internal/logger"
)

const (
	defaultInterval     = 3 * time.Minute
	defaultSettleDelay  = 2 * time.Second
	defaultInitialDelay = 10 * time.Second
	defaultBacklogLimit = 30
)

// Options configure the supervisor loop. Zero values select the defaults.
type Options struct {
	Client     RegistrationClient
	DesiredURL string

	Interval     time.Duration
	SettleDelay  time.Duration
	InitialDelay time.Duration
	// BacklogLimit is the pending-update count above which the backlog is
	// discarded and the webhook re-registered.
	BacklogLimit int
}

// Status is the supervisor's last observation, rebuilt on every poll.
type Status struct {
	DesiredURL    string    `json:"desired_url"`
	RegisteredURL string    `json:"registered_url"`
	PendingCount  int       `json:"pending_count"`
	BacklogLimit  int       `json:"backlog_limit"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	LastError     string    `json:"last_error,omitempty"`
	Running       bool      `json:"running"`
}

// Monitor reconciles the observed webhook registration against the desired
// URL. It shares no mutable state with request handling.
type Monitor struct {
	client       RegistrationClient
	desiredURL   string
	interval     time.Duration
	settleDelay  time.Duration
	initialDelay time.Duration
	backlogLimit int
	log          *slog.Logger

	mu     sync.Mutex
	status Status
}

// NewMonitor builds a supervisor from options.
func NewMonitor(opts Options) *Monitor {
	m := &Monitor{
		client:       opts.Client,
		desiredURL:   opts.DesiredURL,
		interval:     opts.Interval,
		settleDelay:  opts.SettleDelay,
		initialDelay: opts.InitialDelay,
		backlogLimit: opts.BacklogLimit,
		log:          logger.Component("monitor"),
	}
	if m.interval <= 0 {
		m.interval = defaultInterval
	}
	if m.settleDelay <= 0 {
		m.settleDelay = defaultSettleDelay
	}
	if m.initialDelay < 0 {
		m.initialDelay = defaultInitialDelay
	}
	if m.backlogLimit <= 0 {
		m.backlogLimit = defaultBacklogLimit
	}
	m.status = Status{DesiredURL: m.desiredURL, BacklogLimit: m.backlogLimit}
	return m
}

// Run executes the reconcile loop until ctx is cancelled. The initial delay
// lets the startup registration settle before the first check. Individual
// tick failures are logged and retried on the next tick; Run itself only
// returns on cancellation, and always returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	m.setRunning(true)
	defer m.setRunning(false)

	m.log.Info("monitor started",
		slog.String("event", "start"),
		slog.String("desired_url", m.desiredURL),
		slog.Duration("interval", m.interval),
	)

	if !m.sleep(ctx, m.initialDelay) {
		return nil
	}
	for {
		m.tick(ctx)
		if !m.sleep(ctx, m.interval) {
			m.log.Info("monitor stopped", slog.String("event", "stop"))
			return nil
		}
	}
}

// tick performs one observe-compare-correct cycle.
func (m *Monitor) tick(ctx context.Context) {
	info, err := m.client.GetWebhookInfo(ctx)
	if err != nil {
		m.recordError(err)
		m.log.Warn("webhook info fetch failed",
			slog.String("event", "tick"),
			slog.String("err", err.Error()),
		)
		return
	}
	m.recordInfo(info)

	drift := info.URL != m.desiredURL
	backlog := info.PendingUpdateCount > m.backlogLimit
	if !drift && !backlog {
		return
	}

	m.log.Warn("webhook out of sync",
		slog.String("event", "drift"),
		slog.String("registered_url", logger.SanitizeLimit(info.URL, 256)),
		slog.String("desired_url", m.desiredURL),
		slog.Int("pending", info.PendingUpdateCount),
		slog.Bool("url_drift", drift),
		slog.Bool("backlog", backlog),
	)

	if err := m.resync(ctx); err != nil {
		m.recordError(err)
		m.log.Error("webhook resync failed",
			slog.String("event", "resync"),
			slog.String("err", err.Error()),
		)
		return
	}
	m.recordInfo(Info{URL: m.desiredURL})
	m.log.Info("webhook re-registered",
		slog.String("event", "resync"),
		slog.String("url", m.desiredURL),
	)
}

// resync performs one deregister/settle/re-register pair. The pair must not
// be torn apart by shutdown: once deregistered, the re-register runs to
// completion on a detached context so the registration is never left
// half-applied.
func (m *Monitor) resync(ctx context.Context) error {
	detached := context.WithoutCancel(ctx)

	if err := m.client.DeleteWebhook(detached, true); err != nil {
		return err
	}
	time.Sleep(m.settleDelay)
	return m.client.SetWebhook(detached, m.desiredURL)
}

// ForceSync synchronously re-registers the webhook and reports the resulting
// registration state.
func (m *Monitor) ForceSync(ctx context.Context) (Info, error) {
	if err := m.resync(ctx); err != nil {
		m.recordError(err)
		return Info{}, err
	}
	info, err := m.client.GetWebhookInfo(ctx)
	if err != nil {
		m.recordError(err)
		return Info{}, err
	}
	m.recordInfo(info)
	m.log.Info("webhook force resync",
		slog.String("event", "force_resync"),
		slog.String("url", logger.SanitizeLimit(info.URL, 256)),
	)
	return info, nil
}

// Status returns a snapshot of the last observation.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Monitor) recordInfo(info Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.RegisteredURL = info.URL
	m.status.PendingCount = info.PendingUpdateCount
	m.status.LastCheckedAt = time.Now()
	m.status.LastError = ""
}

func (m *Monitor) recordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.LastCheckedAt = time.Now()
	m.status.LastError = err.Error()
}

func (m *Monitor) setRunning(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Running = v
}

// sleep waits for d or until cancellation; reports false when cancelled.
func (m *Monitor) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
