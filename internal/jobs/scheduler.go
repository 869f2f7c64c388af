// internal/jobs/scheduler.go
package jobs

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"

	"github.com/accredix/accredix-backend/internal/services"
)

// Scheduler runs the periodic housekeeping behind the license lifecycle.
// The expiry sweep runs daily and once immediately on startup, so licenses
// that lapsed while the service was down are caught up right away.
type Scheduler struct {
	scheduler      *gocron.Scheduler
	licenseService *services.LicenseService
}

func NewScheduler(licenseService *services.LicenseService) *Scheduler {
	return &Scheduler{
		scheduler:      gocron.NewScheduler(time.UTC),
		licenseService: licenseService,
	}
}

func (s *Scheduler) Start() error {
	job, err := s.scheduler.Every(1).Day().At("00:05").Do(s.runExpirySweep)
	if err != nil {
		return err
	}
	// The sweep is idempotent but there is no point running it concurrently.
	job.SingletonMode()

	s.scheduler.StartAsync()

	go s.runExpirySweep()

	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runExpirySweep() {
	start := time.Now()
	count, err := s.licenseService.ExpireDueLicenses(start)
	if err != nil {
		logrus.WithError(err).Error("License expiry sweep failed")
		return
	}

	logrus.WithFields(logrus.Fields{
		"expired":  count,
		"duration": time.Since(start).Milliseconds(),
	}).Info("License expiry sweep completed")
}
