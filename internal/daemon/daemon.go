package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"curator/internal/config"
	"curator/internal/history"
	"curator/internal/logging"
	"curator/internal/metrics"
	"curator/internal/plugin"
	"curator/internal/task"
	"curator/internal/taskqueue"
)

const defaultPollInterval = 15 * time.Second

// Options wires the daemon to its collaborators.
type Options struct {
	// ConfigPath is reloaded when it changes on disk. Empty disables watching.
	ConfigPath string
	Config     *config.Config
	Registry   *plugin.Registry
	Store      *history.Store
	Logger     *slog.Logger
	Ring       *logging.Ring
	// Now and PollInterval default to time.Now and 15s.
	Now          func() time.Time
	PollInterval time.Duration
}

// Daemon schedules tasks onto a single task queue and enforces
// single-instance execution.
type Daemon struct {
	path     string
	registry *plugin.Registry
	store    *history.Store
	base     *slog.Logger
	logger   *slog.Logger
	ring     *logging.Ring
	now      func() time.Time
	poll     time.Duration

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	cfg      *config.Config
	next     map[string]time.Time
	queue    *taskqueue.Queue
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	metrics  *metrics.Server
	unsubbed func()

	running atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running    bool
	LockPath   string
	ConfigPath string
	Current    *taskqueue.Info
	Pending    []taskqueue.Info
	NextRuns   map[string]time.Time
}

// New constructs a daemon. The store stays owned by the daemon and is closed
// by Close.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Registry == nil || opts.Store == nil {
		return nil, errors.New("daemon requires config, registry, and store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	lockPath := opts.Config.LockPath()
	return &Daemon{
		path:     opts.ConfigPath,
		registry: opts.Registry,
		store:    opts.Store,
		base:     logger,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		ring:     opts.Ring,
		now:      now,
		poll:     poll,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		cfg:      opts.Config,
		next:     make(map[string]time.Time),
	}, nil
}

// Start acquires the lock, starts the task queue, the schedule loop, the
// config watcher and the metrics listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	cfg := d.config()
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another curator daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	queue := taskqueue.New(d.base)
	if err := queue.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start task queue: %w", err)
	}

	d.mu.Lock()
	d.queue = queue
	d.cancel = cancel
	d.mu.Unlock()

	if err := d.startMetrics(cfg, queue); err != nil {
		_ = d.shutdown(context.Background())
		return err
	}
	if d.path != "" && cfg.Daemon.WatchConfig {
		w, err := newWatcher(d.path, d.logger, func() {
			if err := d.Reload(); err != nil {
				logging.WarnWithContext(d.logger, "config reload failed", "config_reload_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "fix the file; the previous configuration stays active"),
				)
			}
		})
		if err != nil {
			_ = d.shutdown(context.Background())
			return fmt.Errorf("watch config: %w", err)
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			w.run(runCtx)
		}()
	}

	d.wg.Add(1)
	go d.loop(runCtx)

	d.running.Store(true)
	d.logger.Info("curator daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("tasks", len(cfg.Tasks)),
	)
	return nil
}

func (d *Daemon) startMetrics(cfg *config.Config, queue *taskqueue.Queue) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewQueueCollector(queue),
	)
	m := metrics.New(reg)
	d.unsubbed = m.Subscribe(d.registry.Events())

	if cfg.Daemon.MetricsBind == "" {
		return nil
	}
	ln, err := net.Listen("tcp", cfg.Daemon.MetricsBind)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	d.metrics = metrics.NewServer(cfg.Daemon.MetricsBind, reg, d.logger)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.metrics.Serve(ln); err != nil {
			d.logger.Error("metrics server failed", logging.Error(err))
		}
	}()
	return nil
}

// Stop abandons queued tasks, waits for the running one and releases the
// lock.
func (d *Daemon) Stop(ctx context.Context) error {
	if !d.running.Load() {
		return nil
	}
	err := d.shutdown(ctx)
	d.running.Store(false)
	d.logger.Info("curator daemon stopped")
	return err
}

func (d *Daemon) shutdown(ctx context.Context) error {
	d.mu.Lock()
	queue, cancel := d.queue, d.cancel
	d.queue, d.cancel = nil, nil
	d.mu.Unlock()

	var errs []error
	if queue != nil {
		errs = append(errs, queue.Shutdown(ctx, taskqueue.Immediate))
	}
	if d.metrics != nil {
		errs = append(errs, d.metrics.Shutdown(ctx))
		d.metrics = nil
	}
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	if d.unsubbed != nil {
		d.unsubbed()
		d.unsubbed = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	return errors.Join(errs...)
}

// Close stops the daemon and closes the history store.
func (d *Daemon) Close() error {
	stopErr := d.Stop(context.Background())
	return errors.Join(stopErr, d.store.Close())
}

// Submit queues one run of the named task now, regardless of its schedule.
func (d *Daemon) Submit(name string) (*taskqueue.Job, error) {
	d.mu.Lock()
	queue, cfg := d.queue, d.cfg
	d.mu.Unlock()
	if queue == nil {
		return nil, errors.New("daemon is not running")
	}
	tk, err := task.New(name, task.Options{
		Config:   cfg,
		Registry: d.registry,
		Store:    d.store,
		Logger:   d.base,
		Ring:     d.ring,
		Now:      d.now,
	})
	if err != nil {
		return nil, err
	}
	return queue.Submit(tk, tk.Priority()), nil
}

// Reload re-reads the configuration file and swaps it in. Schedules of
// tasks whose interval is unchanged keep their next run time.
func (d *Daemon) Reload() error {
	if d.path == "" {
		return errors.New("daemon has no config path to reload")
	}
	cfg, _, _, err := config.Load(d.path)
	if err != nil {
		return err
	}
	for _, name := range cfg.TaskNames() {
		t := cfg.Tasks[name]
		if _, err := d.registry.Resolve(name, t.Plugins); err != nil {
			return err
		}
	}

	d.mu.Lock()
	old := d.cfg
	d.cfg = cfg
	for name := range d.next {
		prev, hadPrev := old.Task(name)
		cur, ok := cfg.Task(name)
		if !ok || !hadPrev || cur.ScheduleInterval != prev.ScheduleInterval || cur.Disabled {
			delete(d.next, name)
		}
	}
	d.mu.Unlock()

	d.logger.Info("configuration reloaded",
		logging.String(logging.FieldEventType, "config_reload"),
		logging.Int("tasks", len(cfg.Tasks)),
	)
	return nil
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config { return d.config() }

func (d *Daemon) config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	queue := d.queue
	next := make(map[string]time.Time, len(d.next))
	for name, at := range d.next {
		next[name] = at
	}
	d.mu.Unlock()

	status := Status{
		Running:    d.running.Load(),
		LockPath:   d.lockPath,
		ConfigPath: d.path,
		NextRuns:   next,
	}
	if queue != nil {
		if info, ok := queue.Running(); ok {
			status.Current = &info
		}
		status.Pending = queue.Pending()
	}
	return status
}
