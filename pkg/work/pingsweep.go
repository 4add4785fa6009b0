package work

import (
	"context"
	"fmt"
	"time"

	ping "github.com/prometheus-community/pro-bing"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/vulntor/jobkit/pkg/jobs"
)

const KindPingSweep = "ping-sweep"

func init() {
	Register(KindPingSweep, func(id string, params map[string]any) (jobs.Executor, error) {
		targets, err := cast.ToStringSliceE(params["targets"])
		if err != nil || len(targets) == 0 {
			return nil, fmt.Errorf("ping-sweep requires a non-empty 'targets' list param")
		}
		sweep := &PingSweep{
			id:      id,
			targets: targets,
			count:   3,
			timeout: 5 * time.Second,
		}
		if raw, ok := params["count"]; ok {
			if sweep.count, err = cast.ToIntE(raw); err != nil || sweep.count < 1 {
				return nil, fmt.Errorf("ping-sweep 'count' must be a positive integer")
			}
		}
		if raw, ok := params["timeout"]; ok {
			if sweep.timeout, err = cast.ToDurationE(raw); err != nil || sweep.timeout <= 0 {
				return nil, fmt.Errorf("ping-sweep 'timeout' must be a positive duration")
			}
		}
		return sweep, nil
	})
}

// PingSweep pings a list of targets in sequence, checkpointing between
// hosts. Unreachable hosts are recorded, not treated as a job failure.
type PingSweep struct {
	id      string
	targets []string
	count   int
	timeout time.Duration

	// Alive holds the targets that answered, populated during Run.
	Alive []string
}

func (p *PingSweep) ID() string   { return p.id }
func (p *PingSweep) Kind() string { return KindPingSweep }

func (p *PingSweep) Run(ctx context.Context, task *jobs.Task) error {
	for i, target := range p.targets {
		if err := task.Checkpoint(ctx); err != nil {
			return err
		}

		pinger, err := ping.NewPinger(target)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", target, err)
		}
		pinger.Count = p.count
		pinger.Timeout = p.timeout
		pinger.SetPrivileged(false)

		if err := pinger.RunWithContext(ctx); err != nil {
			return fmt.Errorf("ping %s: %w", target, err)
		}

		stats := pinger.Statistics()
		if stats.PacketsRecv > 0 {
			p.Alive = append(p.Alive, target)
		} else {
			log.Debug().Str("job_id", p.id).Str("target", target).Msg("No ping reply")
		}
		task.Progress(i+1, len(p.targets), target)
	}

	log.Info().Str("job_id", p.id).Int("alive", len(p.Alive)).Int("targets", len(p.targets)).Msg("Ping sweep finished")
	return nil
}
