package scheduler

import "time"

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeUpdated
	outcomeErrored
	outcomeDeferred
)

func (o outcome) String() string {
	switch o {
	case outcomeUpdated:
		return "updated"
	case outcomeErrored:
		return "errored"
	case outcomeDeferred:
		return "deferred"
	default:
		return "unchanged"
	}
}

// CycleReport summarizes one pass over all subscriptions.
type CycleReport struct {
	ID        string
	Selected  int
	Updated   int
	Unchanged int
	Errored   int
	Deferred  int
	Duration  time.Duration
}

func (r *CycleReport) add(o outcome) {
	switch o {
	case outcomeUpdated:
		r.Updated++
	case outcomeErrored:
		r.Errored++
	case outcomeDeferred:
		r.Deferred++
	default:
		r.Unchanged++
	}
}

func (r *CycleReport) logFields() []any {
	args := []any{"selected", r.Selected, "elapsed_msecs", int(r.Duration.Milliseconds())}
	if r.Errored != 0 {
		args = append(args, "errored", r.Errored)
	}
	if r.Updated != 0 {
		args = append(args, "updated", r.Updated)
	}
	if r.Unchanged != 0 {
		args = append(args, "unchanged", r.Unchanged)
	}
	if r.Deferred != 0 {
		args = append(args, "deferred", r.Deferred)
	}
	return args
}
