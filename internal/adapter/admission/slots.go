package admission

/*
				Porter Admission - User Stream Slots
	SlotRegistry bounds how many streaming chat sessions a single user can
	hold open at once. Acquisition never blocks: a full quota is an
	immediate rejection, not a queue.

	Counts live in an xsync.Map keyed by user identity so unrelated users
	never contend on a shared lock. Each acquire/release is a per-key
	atomic compute; entries are removed when the count returns to zero.
*/

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/porter/internal/logger"
)

type SlotRegistry struct {
	counts     *xsync.Map[string, int]
	logger     *logger.StyledLogger
	maxPerUser int
}

func NewSlotRegistry(maxPerUser int, logger *logger.StyledLogger) *SlotRegistry {
	return &SlotRegistry{
		counts:     xsync.NewMap[string, int](),
		maxPerUser: maxPerUser,
		logger:     logger,
	}
}

// TryAcquire atomically claims a stream slot for the user. Two concurrent
// callers racing for the last slot cannot both win; the check and the
// increment happen inside a single per-key compute.
func (r *SlotRegistry) TryAcquire(userID string) bool {
	acquired := false
	count := 0

	r.counts.Compute(userID, func(old int, loaded bool) (int, xsync.ComputeOp) {
		if old >= r.maxPerUser {
			count = old
			return old, xsync.CancelOp
		}
		acquired = true
		count = old + 1
		return old + 1, xsync.UpdateOp
	})

	if acquired {
		r.logger.Debug("user stream slot acquired",
			"user_id", userID, "active", count, "max", r.maxPerUser)
	} else {
		r.logger.Warn("user at active stream limit",
			"user_id", userID, "active", count, "max", r.maxPerUser)
	}

	return acquired
}

// Release returns a stream slot. Releasing with no tracked slot is a no-op
// rather than an error - it's cheap protection against double-release bugs
// and the count can never go negative. The entry is dropped entirely once
// the count reaches zero so the map only holds users with live streams.
func (r *SlotRegistry) Release(userID string) {
	r.counts.Compute(userID, func(old int, loaded bool) (int, xsync.ComputeOp) {
		if !loaded || old <= 1 {
			return 0, xsync.DeleteOp
		}
		return old - 1, xsync.UpdateOp
	})

	r.logger.Debug("user stream slot released", "user_id", userID)
}

// ActiveStreams reports the current open stream count for a user
func (r *SlotRegistry) ActiveStreams(userID string) int {
	count, _ := r.counts.Load(userID)
	return count
}

// TrackedUsers reports how many users currently hold at least one slot
func (r *SlotRegistry) TrackedUsers() int {
	return r.counts.Size()
}
