package maintenance

import (
	"context"
	"log/slog"
	"sync"

	"github.com/PrivateCaptcha/powsolver/pkg/common"
)

func NewJobs() *jobs {
	return &jobs{
		periodicJobs: make([]common.PeriodicJob, 0),
	}
}

type jobs struct {
	periodicJobs      []common.PeriodicJob
	maintenanceCancel context.CancelFunc
	wg                sync.WaitGroup
}

func (j *jobs) Add(job common.PeriodicJob) {
	j.periodicJobs = append(j.periodicJobs, job)
}

func (j *jobs) Run(ctx context.Context) {
	var maintenanceCtx context.Context
	maintenanceCtx, j.maintenanceCancel = context.WithCancel(common.TraceContext(ctx, "maintenance"))

	slog.DebugContext(maintenanceCtx, "Starting maintenance jobs", "periodic", len(j.periodicJobs))

	for _, job := range j.periodicJobs {
		j.wg.Add(1)
		go func() {
			defer j.wg.Done()
			common.RunPeriodicJob(maintenanceCtx, job)
		}()
	}
}

// Shutdown stops all jobs and waits for their final run
func (j *jobs) Shutdown() {
	slog.Debug("Shutting down maintenance jobs")

	if j.maintenanceCancel != nil {
		j.maintenanceCancel()
	}

	j.wg.Wait()
}
