package dispatch

import (
	"fmt"
	"strings"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/errors"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/metrics"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/runner"
)

func (d *Dispatcher) handleStart(chatID int64) {
	d.reply(chatID, "Ops relay ready. Send help for the command list.")
}

func (d *Dispatcher) handleHelp(chatID int64) {
	conf := d.conf()

	var b strings.Builder
	b.WriteString("Commands:\n")
	b.WriteString("  help — this message\n")
	b.WriteString("  status — host health\n")
	b.WriteString("  run <name> — run a one-time script\n")
	b.WriteString("  stream <name> — stream a long-running script\n")
	b.WriteString("  subscribe / unsubscribe — scheduled broadcast membership\n")
	b.WriteString("  broadcast <text> — message all subscribers (admin)\n")
	b.WriteString("\n")
	fmt.Fprintf(&b, "One-time scripts: %s\n", scriptList(conf.OneTime))
	fmt.Fprintf(&b, "Streaming scripts: %s\n", scriptList(conf.LongRunning))
	fmt.Fprintf(&b, "Periodic scripts: %s\n", periodicList(conf.Periodic))
	b.WriteString("\n* admin only")

	d.reply(chatID, b.String())
}

func (d *Dispatcher) handleStatus(chatID int64) {
	health := metrics.Snapshot(d.conf().Monitors)
	d.reply(chatID, health.Format())
}

func (d *Dispatcher) handleRun(chatID int64, admin bool, arg string) {
	name := firstField(arg)
	conf := d.conf()
	script, err := resolveTarget(name, admin, conf.OneTimeScript)
	if err != nil {
		d.replyTargetError(chatID, "run", name, conf.OneTimeNames(), err)
		return
	}

	d.reply(chatID, fmt.Sprintf("Running %s...", name))
	output, err := runner.RunOnce(*script)
	if err != nil {
		d.reply(chatID, "Run failed: "+err.Error())
		return
	}
	if strings.TrimSpace(output) == "" {
		d.reply(chatID, "(no output)")
		return
	}
	for _, chunk := range Split(output, d.settings.ChunkSize) {
		d.replyCode(chatID, chunk)
	}
}

func (d *Dispatcher) handleStream(chatID int64, admin bool, arg string) {
	name := firstField(arg)
	conf := d.conf()
	script, err := resolveTarget(name, admin, conf.LongRunningScript)
	if err != nil {
		d.replyTargetError(chatID, "stream", name, conf.LongRunningNames(), err)
		return
	}

	d.reply(chatID, fmt.Sprintf("Streaming %s...", name))
	stream, err := runner.RunStreaming(*script)
	if err != nil {
		d.reply(chatID, "Run failed: "+err.Error())
		return
	}

	acc := NewAccumulator(d.settings.ChunkSize, func(chunk string) {
		d.replyCode(chatID, chunk)
	})
	for line := range stream.Lines() {
		acc.Add(line)
	}
	acc.Flush()

	if err := stream.Wait(); err != nil {
		d.reply(chatID, "Run failed: "+err.Error())
		return
	}
	d.reply(chatID, fmt.Sprintf("%s finished.", name))
}

// handleSubscribe registers the chat for broadcasts. The first-come
// admin claim goes to the subscribing user, not the chat, so other
// members of a group chat gain nothing from it.
func (d *Dispatcher) handleSubscribe(chatID, userID int64) {
	added, err := d.registry.Add(chatID)
	if err != nil {
		log.Warn("Persisting subscription for %d: %v", chatID, err)
	}
	if !added {
		d.reply(chatID, "Already subscribed.")
		return
	}
	d.auth.recordFirst(userID)
	d.reply(chatID, "Subscribed to scheduled broadcasts.")
}

func (d *Dispatcher) handleUnsubscribe(chatID int64) {
	removed, err := d.registry.Remove(chatID)
	if err != nil {
		log.Warn("Persisting unsubscription for %d: %v", chatID, err)
	}
	if !removed {
		d.reply(chatID, "You were not subscribed.")
		return
	}
	d.reply(chatID, "Unsubscribed from scheduled broadcasts.")
}

func (d *Dispatcher) handleBroadcast(chatID int64, admin bool, text string) {
	if !admin {
		d.reply(chatID, "Permission denied: broadcast is admin only.")
		return
	}
	if strings.TrimSpace(text) == "" {
		d.reply(chatID, "Usage: broadcast <text>")
		return
	}

	delivered, failed := d.delivery.Deliver("📣 Operator broadcast", Split(text, d.settings.ChunkSize), true)
	d.reply(chatID, fmt.Sprintf("Broadcast delivered to %d subscriber(s), %d failed.", delivered, failed))
}

// ExecutePeriodic runs one scheduled script and broadcasts its output
// to all subscribers. The title banner goes out with the first
// non-empty chunk and the completion line only after at least one
// chunk went out, so a silent run broadcasts nothing.
func (d *Dispatcher) ExecutePeriodic(name string) error {
	script := d.conf().PeriodicByName(name)
	if script == nil {
		log.Warn("Periodic script %s is no longer configured, skipping", name)
		return nil
	}

	stream, err := runner.RunStreaming(script.Script())
	if err != nil {
		return errors.Wrapf(err, "periodic script %s", name)
	}

	title := "📋 " + name
	sent := 0
	acc := NewAccumulator(d.settings.ChunkSize, func(chunk string) {
		d.delivery.Deliver(title, []string{chunk}, sent == 0)
		sent++
	})
	for line := range stream.Lines() {
		acc.Add(line)
	}
	acc.Flush()

	if err := stream.Wait(); err != nil {
		return errors.Wrapf(err, "periodic script %s", name)
	}
	if sent > 0 {
		d.delivery.Deliver(title, []string{name + " finished."}, false)
	}
	return nil
}

// resolveTarget applies the argument, lookup and permission gates
// shared by run and stream. Failures wrap the matching sentinel so
// callers classify them instead of parsing reply text.
func resolveTarget(name string, admin bool, lookup func(string) *config.Script) (*config.Script, error) {
	if name == "" {
		return nil, errors.ErrBadRequest
	}
	script := lookup(name)
	if script == nil {
		return nil, errors.Wrapf(errors.ErrScriptNotFound, "%s", name)
	}
	if script.AdminOnly && !admin {
		return nil, errors.Wrapf(errors.ErrPermissionDenied, "%s", name)
	}
	return script, nil
}

// replyTargetError renders a resolveTarget failure as the user-visible
// reply for one command.
func (d *Dispatcher) replyTargetError(chatID int64, command, name string, available []string, err error) {
	switch {
	case errors.Is(err, errors.ErrBadRequest):
		d.reply(chatID, fmt.Sprintf("Usage: %s <name>", command))
	case errors.Is(err, errors.ErrScriptNotFound):
		d.reply(chatID, notFoundReply(name, available))
	case errors.Is(err, errors.ErrPermissionDenied):
		d.reply(chatID, fmt.Sprintf("Permission denied: %s is admin only.", name))
	default:
		d.reply(chatID, "Run failed: "+err.Error())
	}
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func notFoundReply(name string, available []string) string {
	if len(available) == 0 {
		return fmt.Sprintf("Unknown script %q. Nothing is configured yet.", name)
	}
	return fmt.Sprintf("Unknown script %q. Available: %s", name, strings.Join(available, ", "))
}

func scriptList(scripts []config.Script) string {
	if len(scripts) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(scripts))
	for _, s := range scripts {
		name := s.Name
		if s.AdminOnly {
			name += "*"
		}
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

func periodicList(scripts []config.PeriodicScript) string {
	if len(scripts) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(scripts))
	for _, s := range scripts {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}
