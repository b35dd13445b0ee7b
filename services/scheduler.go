// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartExpirySweep runs the periodic backstop for request expiry. Reads
// already expire lazily; this catches requests nobody looks at.
func (s *RequestService) StartExpirySweep() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			n, err := s.ExpireSweep()
			if err != nil {
				log.Printf("[Sweep] expiry sweep failed: %v", err)
				return
			}
			if n > 0 {
				log.Printf("[Sweep] expired %d overdue request(s)", n)
			}
		}),
	)
}
