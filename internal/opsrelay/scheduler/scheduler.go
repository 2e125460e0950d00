// Package scheduler drives periodic script runs off a coarse ticker.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dimasma0305/opsrelay/internal/log"
	"github.com/dimasma0305/opsrelay/internal/opsrelay/config"
)

// job is one armed periodic script.
type job struct {
	name     string
	trigger  string
	schedule cron.Schedule
	next     time.Time
}

// Scheduler owns the armed job table. Arming is wholesale: a config
// reload disarms everything and rebuilds the table from the new
// config, never diffing against the old one.
type Scheduler struct {
	mu   sync.Mutex
	jobs []*job
	run  func(name string)
	now  func() time.Time
}

// JobStatus describes one armed job for status reporting.
type JobStatus struct {
	Name    string    `json:"name"`
	Trigger string    `json:"trigger"`
	Next    time.Time `json:"next"`
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{now: time.Now}
}

// Arm rebuilds the job table from the given periodic scripts. Jobs
// without a usable trigger are skipped with a warning and never block
// the rest of the table; run receives the job name when it fires.
func (s *Scheduler) Arm(scripts []config.PeriodicScript, run func(name string)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.run = run
	s.jobs = nil
	now := s.now()
	for _, p := range scripts {
		if j := buildJob(p, now); j != nil {
			s.jobs = append(s.jobs, j)
			log.InfoH3("Armed %s (%s), next run %s", j.name, j.trigger, j.next.Format(time.RFC3339))
		}
	}
}

// Disarm drops every armed job. Safe to call repeatedly.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = nil
	s.run = nil
}

// Tick fires every job due at now and advances its next trigger time.
// Callbacks run on their own goroutines so a slow script never stalls
// the table or the other jobs.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if now.Before(j.next) {
			continue
		}
		log.DebugH3("Firing periodic script %s", j.name)
		go s.run(j.name)
		j.next = j.schedule.Next(now)
	}
}

// Jobs returns a snapshot of the armed jobs.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		statuses = append(statuses, JobStatus{Name: j.name, Trigger: j.trigger, Next: j.next})
	}
	return statuses
}

// buildJob turns one periodic script into an armed job. time_of_day
// wins over interval when both are set; a malformed time_of_day is
// treated as unset.
func buildJob(p config.PeriodicScript, now time.Time) *job {
	var spec, trigger string
	if p.TimeOfDay != "" {
		if hour, minute, err := parseTimeOfDay(p.TimeOfDay); err != nil {
			log.Warn("Periodic script %s: %v, falling back to interval", p.Name, err)
		} else {
			spec = fmt.Sprintf("%d %d * * *", minute, hour)
			trigger = "daily at " + p.TimeOfDay
		}
	}
	if spec == "" && p.Interval > 0 {
		spec = fmt.Sprintf("@every %ds", p.Interval)
		trigger = fmt.Sprintf("every %ds", p.Interval)
	}
	if spec == "" {
		log.Warn("Periodic script %s has no usable trigger, skipping", p.Name)
		return nil
	}

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		log.Warn("Periodic script %s has an unusable trigger %q, skipping: %v", p.Name, trigger, err)
		return nil
	}
	return &job{
		name:     p.Name,
		trigger:  trigger,
		schedule: schedule,
		next:     schedule.Next(now),
	}
}

func parseTimeOfDay(v string) (hour, minute int, err error) {
	parts := strings.Split(v, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed time_of_day %q", v)
	}
	hour, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed time_of_day %q", v)
	}
	minute, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("malformed time_of_day %q", v)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time_of_day %q out of range", v)
	}
	return hour, minute, nil
}
