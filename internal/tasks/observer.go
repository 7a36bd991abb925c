package tasks

import (
	"github.com/google/uuid"
)

// Observer receives pipeline notifications. Both methods are called on the
// scheduler's dispatcher goroutine and must not block.
type Observer interface {
	OnSyncProgress(job int, status string, percent int)
	OnSyncComplete(job int, status string)
}

// Handle identifies a subscription returned by [Scheduler.Subscribe].
type Handle uuid.UUID

func (h Handle) String() string { return uuid.UUID(h).String() }

// ObserverFuncs adapts a pair of functions to [Observer]. Nil fields are skipped.
type ObserverFuncs struct {
	Progress func(job int, status string, percent int)
	Complete func(job int, status string)
}

func (o ObserverFuncs) OnSyncProgress(job int, status string, percent int) {
	if o.Progress != nil {
		o.Progress(job, status, percent)
	}
}

func (o ObserverFuncs) OnSyncComplete(job int, status string) {
	if o.Complete != nil {
		o.Complete(job, status)
	}
}

// ChannelObserver forwards notifications to a channel as [ProgressUpdate] values.
//
// Sends never block: when the channel is full the update is dropped.
type ChannelObserver struct {
	updates chan<- ProgressUpdate
}

func NewChannelObserver(updates chan<- ProgressUpdate) *ChannelObserver {
	return &ChannelObserver{updates: updates}
}

func (c *ChannelObserver) OnSyncProgress(job int, status string, percent int) {
	state := Idle
	for s, cp := range checkpoints {
		if cp.message == status {
			state = s
		}
	}
	sendProgress(c.updates, ProgressUpdate{Job: job, State: state, Percent: percent, Message: status})
}

func (c *ChannelObserver) OnSyncComplete(job int, status string) {
	sendProgress(c.updates, ProgressUpdate{Job: job, State: Idle, Percent: 100, Message: status, Done: true})
}
