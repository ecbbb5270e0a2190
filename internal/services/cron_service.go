package services

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// CronService manages the scheduled background audit runs
type CronService struct {
	cron     *cron.Cron
	auditSvc *TourAuditService
	schedule string
}

// NewCronService creates a new CronService
func NewCronService(auditSvc *TourAuditService, schedule string) *CronService {
	// Create cron with seconds precision
	c := cron.New(cron.WithSeconds())

	return &CronService{
		cron:     c,
		auditSvc: auditSvc,
		schedule: schedule,
	}
}

// Start starts all cron jobs
func (s *CronService) Start() error {
	log.Println("Starting cron service...")

	// Nightly consistency audit over the full tour graph.
	// Cron format: second minute hour day month weekday
	_, err := s.cron.AddFunc(s.schedule, s.runAuditJob)
	if err != nil {
		return fmt.Errorf("failed to schedule audit job: %w", err)
	}
	log.Printf("✓ Scheduled: Tour consistency audit (%s)\n", s.schedule)

	s.cron.Start()
	log.Println("✓ Cron service started successfully")

	return nil
}

// Stop stops all cron jobs
func (s *CronService) Stop() {
	log.Println("Stopping cron service...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("✓ Cron service stopped")
}

// runAuditJob runs one full audit and logs the outcome
func (s *CronService) runAuditJob() {
	log.Println("[CRON] Starting tour audit job...")
	startTime := time.Now()

	result, err := s.auditSvc.Run()
	if err != nil {
		log.Printf("[CRON ERROR] Tour audit failed: %v\n", err)
		return
	}

	duration := time.Since(startTime)
	log.Printf("[CRON] ✓ Audited %d tours, %d findings (%d errors) in %v\n",
		result.TourCount, result.Summary.Total, result.Summary.Errors, duration)
}

// RunAuditNow runs the audit job immediately (for manual triggering)
func (s *CronService) RunAuditNow() {
	log.Println("[MANUAL] Running tour audit now...")
	s.runAuditJob()
}

// GetJobStatus returns the status of scheduled jobs
func (s *CronService) GetJobStatus() map[string]interface{} {
	entries := s.cron.Entries()

	jobs := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		jobs = append(jobs, map[string]interface{}{
			"id":       entry.ID,
			"next_run": entry.Next,
			"prev_run": entry.Prev,
		})
	}

	return map[string]interface{}{
		"running":   len(entries) > 0,
		"job_count": len(entries),
		"jobs":      jobs,
	}
}
