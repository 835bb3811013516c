package state

// Checkpoint is the durable envelope written after every step (§6.4):
// { thread_id, step, state, pending_interrupt? }. PendingInterrupt mirrors
// State.PendingInterrupt at the moment of the snapshot so a checkpoint
// driver can answer "is this thread suspended?" without deserializing the
// full state.
type Checkpoint struct {
	ThreadID         string
	Step             int
	State            *AgentState
	PendingInterrupt *Interrupt
}

// NewCheckpoint snapshots s at the given step, cloning so later mutation of
// the live state does not alter the recorded checkpoint.
func NewCheckpoint(step int, s *AgentState) Checkpoint {
	clone := s.Clone()
	return Checkpoint{
		ThreadID:         clone.ThreadID,
		Step:             step,
		State:            clone,
		PendingInterrupt: clone.PendingInterrupt,
	}
}
