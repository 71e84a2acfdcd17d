package workflow

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/praetorworks/praetor/pkg/models"
)

// TriggerFunc starts one workflow run on behalf of a trigger.
type TriggerFunc func(workflowName string, trigger models.WorkflowTrigger)

// Scheduler wires schedule triggers to cron. Manual, on-change, and
// on-event triggers are fired by their own entry points; only cron lives
// here.
type Scheduler struct {
	cron    *cron.Cron
	run     TriggerFunc
	mu      sync.Mutex
	entries map[string][]cron.EntryID
	logger  *slog.Logger
}

// NewScheduler builds a stopped scheduler; call Start once triggers are
// registered.
func NewScheduler(run TriggerFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(),
		run:     run,
		entries: make(map[string][]cron.EntryID),
		logger:  logger.With("component", "workflow_scheduler"),
	}
}

// Register adds cron entries for every schedule trigger of a workflow.
// Re-registering a workflow replaces its previous entries.
func (s *Scheduler) Register(def *models.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(def.Name)

	var ids []cron.EntryID
	for _, trigger := range def.Triggers {
		if trigger.Type != models.TriggerSchedule {
			continue
		}
		name := def.Name
		captured := trigger
		id, err := s.cron.AddFunc(trigger.Schedule, func() {
			s.run(name, captured)
		})
		if err != nil {
			for _, prev := range ids {
				s.cron.Remove(prev)
			}
			return fmt.Errorf("workflow %q: bad cron expression %q: %w", def.Name, trigger.Schedule, err)
		}
		ids = append(ids, id)
	}
	if len(ids) > 0 {
		s.entries[def.Name] = ids
		s.logger.Info("workflow schedule registered",
			"workflow", def.Name, "entries", len(ids))
	}
	return nil
}

// Unregister removes a workflow's cron entries.
func (s *Scheduler) Unregister(workflowName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(workflowName)
}

func (s *Scheduler) removeLocked(workflowName string) {
	for _, id := range s.entries[workflowName] {
		s.cron.Remove(id)
	}
	delete(s.entries, workflowName)
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running trigger callbacks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Scheduled lists workflows with active cron entries.
func (s *Scheduler) Scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	return out
}
