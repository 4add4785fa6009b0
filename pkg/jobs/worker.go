package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// runExecutor drives one unit of work to its terminal result. A panic in
// the executor is folded into the failure report rather than taking down
// the process.
func runExecutor(ctx context.Context, exec Executor, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", task.ID(), r)
			log.Error().Str("job_id", task.ID()).Msgf("Panic in job executor: %v", r)
		}
	}()
	return exec.Run(ctx, task)
}
