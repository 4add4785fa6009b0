package work

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/vulntor/jobkit/pkg/jobs"
)

const KindSleep = "sleep"

// sleepTick bounds cancellation and pause latency for sleep jobs.
const sleepTick = 100 * time.Millisecond

func init() {
	Register(KindSleep, func(id string, params map[string]any) (jobs.Executor, error) {
		duration, err := cast.ToDurationE(params["duration"])
		if err != nil || duration <= 0 {
			return nil, fmt.Errorf("sleep requires a positive 'duration' param")
		}
		return &Sleep{id: id, duration: duration}, nil
	})
}

// Sleep idles for a fixed duration in small ticks. It exists for demos and
// manual testing of the scheduling and cancellation paths.
type Sleep struct {
	id       string
	duration time.Duration
}

func (s *Sleep) ID() string   { return s.id }
func (s *Sleep) Kind() string { return KindSleep }

func (s *Sleep) Run(ctx context.Context, task *jobs.Task) error {
	ticks := int(s.duration / sleepTick)
	if ticks < 1 {
		ticks = 1
	}
	for i := 0; i < ticks; i++ {
		if err := task.Checkpoint(ctx); err != nil {
			return err
		}
		time.Sleep(min(sleepTick, s.duration))
		task.Progress(i+1, ticks, "")
	}
	return nil
}
