package monitor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/factory-monitor/internal/alert"
	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/health"
	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/internal/storage"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore satisfies both the probe and the alert store surfaces
type memStore struct {
	mu     sync.Mutex
	checks map[string]*models.SystemHealthCheck
	alerts []*models.SystemAlert
}

func newMemStore() *memStore {
	return &memStore{checks: map[string]*models.SystemHealthCheck{}}
}

func (s *memStore) RunTrivialQuery(ctx context.Context) error { return nil }
func (s *memStore) GetActiveConnectionCount(ctx context.Context) (int64, error) {
	return 1, nil
}
func (s *memStore) GetDatabaseSizePretty(ctx context.Context) (string, error) { return "1 MB", nil }

func (s *memStore) UpsertHealthCheck(ctx context.Context, c *models.SystemHealthCheck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[c.CheckName] = c
	return nil
}

func (s *memStore) InsertPerformanceMetrics(ctx context.Context, m []*models.PerformanceMetric) error {
	return nil
}

func (s *memStore) DeletePerformanceMetricsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *memStore) InsertAlert(ctx context.Context, a *models.SystemAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *memStore) GetOverdueOrderCount(ctx context.Context, asOf time.Time) (int64, error) {
	return 0, nil
}

func (s *memStore) GetLowStockItemCount(ctx context.Context) (int64, error) { return 0, nil }

type recordingDispatcher struct {
	mu    sync.Mutex
	roles []int64
	users []int64
}

func (d *recordingDispatcher) SendToRole(ctx context.Context, roleID int64, p *models.NotificationPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.roles = append(d.roles, roleID)
	return nil
}

func (d *recordingDispatcher) SendToUser(ctx context.Context, userID int64, p *models.NotificationPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users = append(d.users, userID)
	return nil
}

func quietSampler(ctx context.Context, now time.Time) ([]*models.PerformanceMetric, error) {
	return nil, nil
}

func steadyMemory(ctx context.Context) (health.MemorySample, error) {
	return health.MemorySample{HeapInUse: 500, HeapReserved: 1000}, nil
}

func steadyHost(ctx context.Context) (health.HostSample, error) {
	return health.HostSample{Hostname: "plant-01"}, nil
}

func newTestMonitor(t *testing.T, cfg config.MonitorConfig) (*Monitor, *memStore) {
	t.Helper()
	utils.InitLogger("info", "text", "stdout", "")

	store := newMemStore()
	mm := metrics.NewManager()
	runner := health.NewRunner(store, config.Default().HealthChecks,
		health.WithMemorySampler(steadyMemory),
		health.WithHostSampler(steadyHost),
		health.WithMetrics(mm))
	engine := alert.NewEngine(store, &recordingDispatcher{}, config.Default().Alerts,
		alert.WithMetricSampler(quietSampler),
		alert.WithMetrics(mm))

	m := New(cfg, Deps{Runner: runner, Engine: engine, Metrics: mm})
	t.Cleanup(func() {
		m.Shutdown()
		m.WaitForCycles()
	})
	return m, store
}

func slowConfig() config.MonitorConfig {
	return config.MonitorConfig{
		HealthCheckInterval: time.Hour,
		MonitoringInterval:  time.Hour,
		CycleTimeout:        time.Minute,
	}
}

func TestMonitorLifecycle(t *testing.T) {
	t.Run("status before the first cycle", func(t *testing.T) {
		m, store := newTestMonitor(t, slowConfig())
		require.NoError(t, m.Initialize(context.Background()))

		status := m.GetSystemStatus()
		assert.True(t, status.HealthCheckArmed)
		assert.True(t, status.MonitoringArmed)
		assert.Empty(t, status.LastKnownStatus)
		assert.Nil(t, status.LastHealthCycleAt)
		assert.Zero(t, status.CyclesRun[TimerHealthCheck])

		// Definitions are registered with unknown status
		store.mu.Lock()
		assert.Len(t, store.checks, 4)
		assert.Equal(t, models.HealthStatusUnknown, store.checks[models.CheckMemoryUsage].Status)
		store.mu.Unlock()

		// Initialize is idempotent
		require.NoError(t, m.Initialize(context.Background()))
		assert.True(t, m.IsRunning())
	})

	t.Run("stop is safe to repeat", func(t *testing.T) {
		m, _ := newTestMonitor(t, slowConfig())
		require.NoError(t, m.StartMonitoring())

		m.StopMonitoring()
		m.StopMonitoring()
		assert.False(t, m.IsRunning())

		require.NoError(t, m.StartMonitoring())
		assert.True(t, m.IsRunning())
		m.StopMonitoring()
	})

	t.Run("shutdown is final", func(t *testing.T) {
		m, _ := newTestMonitor(t, slowConfig())
		require.NoError(t, m.Shutdown())

		assert.True(t, utils.HasCode(m.Initialize(context.Background()), utils.ErrCodeShutdown))
		assert.True(t, utils.HasCode(m.StartMonitoring(), utils.ErrCodeShutdown))
		assert.True(t, m.GetSystemStatus().Closed)
	})

	t.Run("rejects non-positive intervals", func(t *testing.T) {
		m, _ := newTestMonitor(t, config.MonitorConfig{HealthCheckInterval: time.Minute})
		assert.True(t, utils.HasCode(m.StartMonitoring(), utils.ErrCodeConfiguration))

		// A failed start leaves the monitor uninitialized
		assert.True(t, utils.HasCode(m.Initialize(context.Background()), utils.ErrCodeConfiguration))
		assert.True(t, utils.HasCode(m.Initialize(context.Background()), utils.ErrCodeConfiguration))
		assert.False(t, m.IsRunning())
	})
}

func TestTimersFire(t *testing.T) {
	m, store := newTestMonitor(t, config.MonitorConfig{
		HealthCheckInterval: 20 * time.Millisecond,
		MonitoringInterval:  30 * time.Millisecond,
		CycleTimeout:        time.Second,
	})
	require.NoError(t, m.Initialize(context.Background()))

	require.Eventually(t, func() bool {
		s := m.GetSystemStatus()
		return s.CyclesRun[TimerHealthCheck] >= 2 && s.CyclesRun[TimerMonitoring] >= 1
	}, 2*time.Second, 10*time.Millisecond)

	m.StopMonitoring()
	m.WaitForCycles()

	status := m.GetSystemStatus()
	assert.Len(t, status.LastKnownStatus, 4)
	assert.NotNil(t, status.LastHealthCycleAt)
	for name, res := range status.LastKnownStatus {
		assert.Equal(t, models.HealthStatusHealthy, res.Status, name)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.alerts)
}

func TestTickOverlapGuard(t *testing.T) {
	t.Run("skips while the previous cycle runs", func(t *testing.T) {
		m, _ := newTestMonitor(t, slowConfig())

		release := make(chan struct{})
		started := make(chan struct{}, 2)
		tm := &timer{name: "test", interval: time.Hour, run: func(ctx context.Context) error {
			started <- struct{}{}
			<-release
			return nil
		}}

		assert.True(t, m.tick(tm))
		<-started
		assert.False(t, m.tick(tm))
		assert.Equal(t, uint64(1), tm.skipped.Load())

		close(release)
		m.WaitForCycles()
		assert.Equal(t, uint64(1), tm.runs.Load())

		// Once finished the next tick runs again
		release = make(chan struct{})
		close(release)
		assert.True(t, m.tick(tm))
		m.WaitForCycles()
		assert.Equal(t, uint64(2), tm.runs.Load())
	})

	t.Run("overlap allowed runs both", func(t *testing.T) {
		cfg := slowConfig()
		cfg.AllowOverlap = true
		m, _ := newTestMonitor(t, cfg)

		release := make(chan struct{})
		tm := &timer{name: "test", interval: time.Hour, run: func(ctx context.Context) error {
			<-release
			return nil
		}}

		assert.True(t, m.tick(tm))
		assert.True(t, m.tick(tm))
		close(release)
		m.WaitForCycles()
		assert.Equal(t, uint64(2), tm.runs.Load())
		assert.Zero(t, tm.skipped.Load())
	})

	t.Run("panicking cycle is contained", func(t *testing.T) {
		m, _ := newTestMonitor(t, slowConfig())
		tm := &timer{name: "test", interval: time.Hour, run: func(ctx context.Context) error {
			panic("boom")
		}}

		assert.True(t, m.tick(tm))
		m.WaitForCycles()
		assert.Equal(t, uint64(1), tm.runs.Load())
		assert.Zero(t, tm.inflight.Load())
	})
}

// slowStorage makes every trivial query take seven seconds on the fake clock
type slowStorage struct {
	storage.Storage
	clock *fakeClock
}

func (s *slowStorage) RunTrivialQuery(ctx context.Context) error {
	s.clock.Advance(7 * time.Second)
	return s.Storage.RunTrivialQuery(ctx)
}

func newSQLiteStore(t *testing.T) storage.Storage {
	t.Helper()
	base, err := storage.NewStorage(&config.StorageConfig{
		Type:             "sqlite",
		ConnectionString: filepath.Join(t.TempDir(), "factory.db"),
		MaxConnections:   4,
	})
	require.NoError(t, err)
	require.NoError(t, base.Connect())
	t.Cleanup(func() { base.Close() })
	require.NoError(t, base.Migrate())
	return base
}

func TestSlowDatabaseEndToEnd(t *testing.T) {
	utils.InitLogger("info", "text", "stdout", "")
	ctx := context.Background()
	base := newSQLiteStore(t)

	clock := &fakeClock{now: time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)}
	store := &slowStorage{Storage: base, clock: clock}

	checks := config.Default().HealthChecks
	checks.DBPerformanceWarning = time.Minute
	checks.DBPerformanceCritical = 2 * time.Minute

	dispatcher := &recordingDispatcher{}
	runner := health.NewRunner(store, checks,
		health.WithClock(clock.Now),
		health.WithMemorySampler(steadyMemory),
		health.WithHostSampler(steadyHost))
	engine := alert.NewEngine(store, dispatcher, config.Default().Alerts, alert.WithClock(clock.Now))
	m := New(slowConfig(), Deps{Runner: runner, Engine: engine})
	defer m.Shutdown()

	require.NoError(t, engine.RegisterDefinitions(ctx, runner.Definitions()))

	results, err := m.RunHealthCheckCycle(ctx)
	require.NoError(t, err)
	require.Len(t, results, 4)

	row, err := base.GetHealthCheck(ctx, models.CheckDatabaseConnection)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusCritical, row.Status)
	assert.Equal(t, int64(7000), row.CheckDurationMs)
	assert.True(t, row.IsCritical)

	alerts, err := base.GetAlerts(ctx, models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.AlertTypeSystem, alerts[0].Type)
	assert.Equal(t, models.CheckDatabaseConnection, alerts[0].SourceID)
	assert.Equal(t, []int64{models.RoleAdmin, models.RoleManager}, alerts[0].TargetRoles)

	dispatcher.mu.Lock()
	assert.ElementsMatch(t, []int64{1, 2}, dispatcher.roles)
	assert.Empty(t, dispatcher.users)
	dispatcher.mu.Unlock()

	status := m.GetSystemStatus()
	assert.Equal(t, models.HealthStatusCritical, status.LastKnownStatus[models.CheckDatabaseConnection].Status)
	assert.False(t, status.Degraded)
	t.Logf("✓ Slow database raised a single critical alert")
}

// hungStorage never answers the trivial query until the caller gives up
type hungStorage struct {
	storage.Storage
}

func (s *hungStorage) RunTrivialQuery(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHungDatabaseStillAlerts(t *testing.T) {
	utils.InitLogger("info", "text", "stdout", "")
	base := newSQLiteStore(t)
	store := &hungStorage{Storage: base}

	dispatcher := &recordingDispatcher{}
	runner := health.NewRunner(store, config.Default().HealthChecks,
		health.WithMemorySampler(steadyMemory),
		health.WithHostSampler(steadyHost))
	engine := alert.NewEngine(store, dispatcher, config.Default().Alerts)

	cfg := slowConfig()
	cfg.CycleTimeout = 200 * time.Millisecond
	m := New(cfg, Deps{Runner: runner, Engine: engine})
	defer m.Shutdown()

	ctx := context.Background()
	require.NoError(t, engine.RegisterDefinitions(ctx, runner.Definitions()))

	m.runCycle(m.healthTimer)
	assert.Equal(t, uint64(1), m.healthTimer.runs.Load())

	row, err := base.GetHealthCheck(ctx, models.CheckDatabaseConnection)
	require.NoError(t, err)
	assert.Equal(t, models.HealthStatusCritical, row.Status)
	require.NotNil(t, row.LastError)

	for _, name := range []string{models.CheckDatabasePerformance, models.CheckMemoryUsage, models.CheckSystemLiveness} {
		other, err := base.GetHealthCheck(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, models.HealthStatusHealthy, other.Status, name)
	}

	alerts, err := base.GetAlerts(ctx, models.AlertFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, models.CheckDatabaseConnection, alerts[0].SourceID)

	dispatcher.mu.Lock()
	assert.ElementsMatch(t, []int64{models.RoleAdmin, models.RoleManager}, dispatcher.roles)
	dispatcher.mu.Unlock()

	status := m.GetSystemStatus()
	assert.False(t, status.Degraded, status.LastPersistError)
	assert.Equal(t, models.HealthStatusCritical, status.LastKnownStatus[models.CheckDatabaseConnection].Status)
}
