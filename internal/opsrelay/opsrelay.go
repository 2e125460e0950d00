// Package opsrelay wires the relay together: the chat transport, the
// command dispatcher, the subscriber registry and the scheduler, plus
// the three long-lived loops that drive them (message receiving, the
// scheduler tick and the config change check).
package opsrelay

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	godaemon "github.com/sevlyar/go-daemon"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/broadcast"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/control"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/daemon"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/dispatch"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/errors"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/notify"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/registry"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/scheduler"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/telegram"
)

const (
	// tickInterval drives Scheduler.Tick. Interval jobs are only as
	// accurate as this cadence.
	tickInterval = time.Second

	// configPollInterval is how often the config change check runs.
	// The fsnotify watcher wakes the same check earlier when it can.
	configPollInterval = 10 * time.Second

	// shutdownTimeout bounds the wait for the loops on Stop. Hung
	// script children are abandoned, not killed.
	shutdownTimeout = 10 * time.Second
)

// Messenger is the chat transport the relay runs on. The Telegram
// client implements it; tests substitute their own.
type Messenger interface {
	SendMessage(chatID int64, text string, markdown bool) error
	GetMe() (*telegram.User, error)
	Poll(ctx context.Context) <-chan telegram.Update
}

// Options control how the relay process runs.
type Options struct {
	// DaemonMode forks the relay into the background.
	DaemonMode bool
	// PIDFile is where the daemon records its PID.
	PIDFile string
	// LogFile receives stdout and stderr in daemon mode.
	LogFile string
	// SocketPath is the control socket location.
	SocketPath string
}

// Bot is the running relay. It owns the current configuration and
// every component, and is the only place the three loops meet.
type Bot struct {
	settings config.Settings
	options  Options

	// confMu guards the state replaced wholesale on a config reload.
	confMu     sync.RWMutex
	conf       *config.BotConfig
	notifiers  notify.Multi
	lastReload time.Time

	// marker is only touched before the loops start and from the
	// config loop, never concurrently.
	marker string
	token  string

	messenger  Messenger
	registry   *registry.Registry
	scheduler  *scheduler.Scheduler
	dispatcher *dispatch.Dispatcher
	delivery   *broadcast.Delivery

	controlServer *control.Server
	reloadNow     chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	started  time.Time
}

// New creates a relay from the environment settings. Nothing runs
// until Start.
func New(settings config.Settings) *Bot {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		settings:  settings,
		registry:  registry.New(settings.SubscribersPath),
		scheduler: scheduler.New(),
		reloadNow: make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start brings the relay up. In daemon mode the call returns in the
// parent once the child is forked and blocks in the child until
// shutdown; in the foreground it returns as soon as the loops run and
// the caller owns the wait.
func (b *Bot) Start(options Options) error {
	if options.PIDFile == "" {
		options.PIDFile = daemon.DefaultPIDFile
	}
	if options.LogFile == "" {
		options.LogFile = daemon.DefaultLogFile
	}
	if options.SocketPath == "" {
		options.SocketPath = control.DefaultSocketPath
	}
	b.options = options

	if options.DaemonMode {
		return b.startAsDaemon()
	}
	return b.startService()
}

// startAsDaemon forks the relay into the background and runs the
// service in the child.
func (b *Bot) startAsDaemon() error {
	if err := daemon.EnsureDirectoriesExist(b.options.PIDFile, b.options.LogFile, b.options.SocketPath); err != nil {
		return err
	}

	daemonCtx := &godaemon.Context{
		PidFileName: b.options.PIDFile,
		PidFilePerm: 0644,
		LogFileName: b.options.LogFile,
		LogFilePerm: 0640,
		WorkDir:     "./",
		Umask:       027,
	}

	if godaemon.WasReborn() {
		// Child daemon process
		pid := os.Getpid()
		log.Info("Relay daemon started (PID: %d)", pid)
		log.InfoH3("PID file: %s", b.options.PIDFile)
		log.InfoH3("Log file: %s", b.options.LogFile)

		if err := daemon.WritePIDFile(b.options.PIDFile, pid); err != nil {
			return err
		}
		if err := b.startService(); err != nil {
			return err
		}
		b.waitForShutdown()
		return nil
	}

	// Parent process: fork the daemon and report
	child, err := daemonCtx.Reborn()
	if err != nil {
		return fmt.Errorf("failed to fork daemon: %w", err)
	}
	if child != nil {
		log.Info("Relay daemon started")
		log.InfoH3("PID: %d (saved to %s)", child.Pid, b.options.PIDFile)
		log.InfoH3("Logs: %s", b.options.LogFile)
		return nil
	}
	return fmt.Errorf("unexpected daemon state")
}

// startService loads all state and starts the loops.
func (b *Bot) startService() error {
	conf, err := config.Load(b.settings.ConfigPath)
	if err != nil {
		return err
	}
	marker, err := config.ChangeMarker(b.settings.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "fingerprinting config file")
	}
	if err := b.registry.Load(); err != nil {
		return err
	}

	b.token = b.settings.ResolveToken(conf)
	if b.messenger == nil {
		client, err := telegram.New(b.token, b.settings.APIBaseURL)
		if err != nil {
			return err
		}
		b.messenger = client
	}

	me, err := b.messenger.GetMe()
	if err != nil {
		return errors.Wrap(err, "verifying bot identity")
	}
	log.Info("Relay authorized as @%s", me.Username)

	b.conf = conf
	b.marker = marker
	b.notifiers = notify.FromConfig(&conf.Notifications)
	b.started = time.Now()

	b.delivery = broadcast.New(b.messenger, b.registry)
	b.dispatcher = dispatch.New(b.messenger, b.registry, b.delivery, b.currentConfig, b.settings)
	b.dispatcher.SetBotName(me.Username)

	b.scheduler.Arm(conf.Periodic, b.runPeriodic)

	b.controlServer = control.NewServer(b.options.SocketPath, b)
	if err := b.controlServer.Init(); err != nil {
		return err
	}

	b.wg.Add(4)
	go func() {
		defer b.wg.Done()
		b.controlServer.Run(b.ctx)
	}()
	go func() {
		defer b.wg.Done()
		b.receiveLoop()
	}()
	go func() {
		defer b.wg.Done()
		b.schedulerLoop()
	}()
	go func() {
		defer b.wg.Done()
		b.configLoop()
	}()

	log.Info("Relay started: %d subscriber(s), %d periodic job(s)", b.registry.Len(), len(b.scheduler.Jobs()))
	b.notifyOperators(notify.Event{
		Level:   notify.LevelInfo,
		Title:   "Relay started",
		Message: fmt.Sprintf("opsrelay is up as @%s with %d subscriber(s)", me.Username, b.registry.Len()),
	})
	return nil
}

// Stop shuts the relay down: the loops are cancelled and awaited,
// in-flight script children are abandoned. Safe to call more than
// once and from the control socket.
func (b *Bot) Stop() {
	b.stopOnce.Do(func() {
		log.Info("Stopping relay...")
		b.notifyOperators(notify.Event{
			Level:   notify.LevelInfo,
			Title:   "Relay stopped",
			Message: "opsrelay is shutting down",
		})

		b.cancel()
		if b.controlServer != nil {
			if err := b.controlServer.Close(); err != nil {
				log.Error("Failed to close control socket: %v", err)
			}
		}

		done := make(chan struct{})
		go func() {
			b.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
			log.InfoH3("All loops finished")
		case <-time.After(shutdownTimeout):
			log.Error("Timeout waiting for loops to finish")
		}
		log.Info("Relay stopped")
	})
}

// Done is closed once shutdown begins.
func (b *Bot) Done() <-chan struct{} {
	return b.ctx.Done()
}

// waitForShutdown keeps the daemon child alive until a termination
// signal or a control-socket stop.
func (b *Bot) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		b.Stop()
	case <-b.ctx.Done():
	}
}

// currentConfig hands the dispatcher the live configuration so a hot
// reload takes effect on the next command.
func (b *Bot) currentConfig() *config.BotConfig {
	b.confMu.RLock()
	defer b.confMu.RUnlock()
	return b.conf
}

func (b *Bot) notifyOperators(event notify.Event) {
	b.confMu.RLock()
	notifiers := b.notifiers
	b.confMu.RUnlock()
	notifiers.Notify(event)
}

// runPeriodic is the scheduler callback. Failures are logged and
// reported to operators, never to subscribers.
func (b *Bot) runPeriodic(name string) {
	if err := b.dispatcher.ExecutePeriodic(name); err != nil {
		log.Error("Periodic script %s: %v", name, err)
		b.notifyOperators(notify.Event{
			Level:   notify.LevelError,
			Title:   "Scheduled run failed",
			Message: name + ": " + err.Error(),
		})
	}
}

// receiveLoop pulls updates off the transport and dispatches each
// message on its own goroutine, so a long script run never delays the
// next command. Command goroutines are not awaited on shutdown.
func (b *Bot) receiveLoop() {
	for update := range b.messenger.Poll(b.ctx) {
		msg := update.Message
		if msg == nil || msg.Text == "" {
			continue
		}
		userID := msg.Chat.ID
		if msg.From != nil {
			userID = msg.From.ID
		}
		go b.dispatcher.HandleMessage(msg.Chat.ID, userID, msg.Text)
	}
	log.DebugH3("Receive loop stopped")
}

// schedulerLoop drives the scheduler at a fixed cadence.
func (b *Bot) schedulerLoop() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			log.DebugH3("Scheduler loop stopped")
			return
		case now := <-ticker.C:
			b.scheduler.Tick(now)
		}
	}
}

// configLoop polls the config file for changes. An fsnotify watcher on
// the config directory wakes the same check early; the ticker stays
// authoritative, so losing the watcher only costs latency.
func (b *Bot) configLoop() {
	ticker := time.NewTicker(configPollInterval)
	defer ticker.Stop()

	events := b.watchConfigDir()
	for {
		select {
		case <-b.ctx.Done():
			log.DebugH3("Config loop stopped")
			return
		case <-ticker.C:
			b.checkConfig(false)
		case <-b.reloadNow:
			b.checkConfig(true)
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if event.Name == b.settings.ConfigPath && event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				b.checkConfig(false)
			}
		}
	}
}

// watchConfigDir sets up the fsnotify early wake. The directory is
// watched rather than the file so editors that replace the file are
// still seen. Returns a nil channel when watching is unavailable.
func (b *Bot) watchConfigDir() <-chan fsnotify.Event {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("Config file watching unavailable, polling only: %v", err)
		return nil
	}
	if err := watcher.Add(configDir(b.settings.ConfigPath)); err != nil {
		log.Warn("Config file watching unavailable, polling only: %v", err)
		_ = watcher.Close()
		return nil
	}
	go func() {
		<-b.ctx.Done()
		_ = watcher.Close()
	}()
	go func() {
		for err := range watcher.Errors {
			log.Warn("Config file watcher: %v", err)
		}
	}()
	return watcher.Events
}

func configDir(path string) string {
	dir := filepath.Dir(path)
	if dir == "" {
		return "."
	}
	return dir
}

// checkConfig compares the change marker and hot-reloads on a
// difference. On a failed reload the previous config and the armed
// jobs stay untouched; the marker still advances so one bad write is
// reported once, not every poll.
func (b *Bot) checkConfig(force bool) {
	path := b.settings.ConfigPath
	marker, err := config.ChangeMarker(path)
	if err != nil {
		log.Warn("Checking config file %s: %v", path, err)
		return
	}
	if !force && marker == b.marker {
		return
	}
	b.marker = marker

	log.Info("Reloading configuration from %s", path)
	conf, err := config.Load(path)
	if err != nil {
		log.Error("Config reload failed: %v", err)
		b.delivery.Deliver("⚙️ Config reload failed",
			[]string{err.Error() + "\nKeeping the previous configuration."}, true)
		b.notifyOperators(notify.Event{
			Level:   notify.LevelError,
			Title:   "Config reload failed",
			Message: err.Error(),
		})
		return
	}

	if b.settings.ResolveToken(conf) != b.token {
		log.Warn("Bot token changed in the configuration; restart the relay to apply it")
	}

	b.confMu.Lock()
	b.conf = conf
	b.notifiers = notify.FromConfig(&conf.Notifications)
	b.lastReload = time.Now()
	b.confMu.Unlock()

	b.scheduler.Disarm()
	b.scheduler.Arm(conf.Periodic, b.runPeriodic)

	summary := fmt.Sprintf("%d one-time, %d streaming, %d periodic script(s) loaded.",
		len(conf.OneTime), len(conf.LongRunning), len(conf.Periodic))
	log.Info("Configuration reloaded: %s", summary)
	b.delivery.Deliver("⚙️ Configuration reloaded", []string{summary}, true)
	b.notifyOperators(notify.Event{
		Level:   notify.LevelInfo,
		Title:   "Configuration reloaded",
		Message: summary,
	})
}

// HandleControl answers the CLI over the control socket.
func (b *Bot) HandleControl(req control.Request) control.Response {
	switch req.Action {
	case "status":
		b.confMu.RLock()
		lastReload := b.lastReload
		b.confMu.RUnlock()

		data := map[string]interface{}{
			"pid":         os.Getpid(),
			"uptime":      time.Since(b.started).Round(time.Second).String(),
			"subscribers": b.registry.Len(),
			"jobs":        b.scheduler.Jobs(),
			"config_path": b.settings.ConfigPath,
		}
		if !lastReload.IsZero() {
			data["last_reload"] = lastReload.Format(time.RFC3339)
		}
		return control.Response{Success: true, Message: "relay is running", Data: data}

	case "reload":
		select {
		case b.reloadNow <- struct{}{}:
		default: // a check is already queued
		}
		return control.Response{Success: true, Message: "configuration check scheduled"}

	case "stop":
		go b.Stop()
		return control.Response{Success: true, Message: "shutting down"}

	default:
		return control.Response{Success: false, Error: fmt.Sprintf("unknown action: %s", req.Action)}
	}
}
