package service

import (
	"context"
	"time"
)

// PollState is what a single poll check observed.
type PollState int

const (
	// PollPending means the remote job has not reached a terminal state yet.
	PollPending PollState = iota
	// PollDone means the remote job finished successfully.
	PollDone
	// PollAborted means the remote job reached a terminal state other than success.
	PollAborted
)

// PollOutcome is the tagged result of PollUntil.
type PollOutcome int

const (
	PollCompleted PollOutcome = iota
	PollFailed
	PollTimedOut
)

func (o PollOutcome) String() string {
	switch o {
	case PollCompleted:
		return "completed"
	case PollFailed:
		return "failed"
	case PollTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// PollUntil calls check immediately and then every interval until check
// reports a terminal state or timeout elapses. Cancellation of ctx is
// reported as PollTimedOut. A non-nil error from check stops polling and is
// returned with PollFailed, unless it was caused by the deadline.
func PollUntil(ctx context.Context, interval, timeout time.Duration, check func(context.Context) (PollState, error)) (PollOutcome, error) {
	pollCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := check(pollCtx)
		if err != nil {
			if pollCtx.Err() != nil {
				return PollTimedOut, nil
			}
			return PollFailed, err
		}

		switch state {
		case PollDone:
			return PollCompleted, nil
		case PollAborted:
			return PollFailed, nil
		}

		select {
		case <-pollCtx.Done():
			return PollTimedOut, nil
		case <-ticker.C:
		}
	}
}
