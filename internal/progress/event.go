package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageCycleStart    Stage = "CYCLE_START"
	StageCycleDone     Stage = "CYCLE_DONE"
	StageGroupDone     Stage = "GROUP_DONE"
	StageGroupFailed   Stage = "GROUP_FAILED"
	StageTaskPersisted Stage = "TASK_PERSISTED"
	StageCleanupDone   Stage = "CLEANUP_DONE"
)

// Event captures a single milestone of one monitoring cycle.
type Event struct {
	// CycleID identifies the cycle run using the 16-byte UUID form.
	CycleID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Source scopes group events to a host label ("olx.pl").
	Source string
	// Query is the canonical search URL for group events.
	Query string
	// Strategy names the extraction method that produced the result.
	Strategy string
	// TaskID scopes persistence events to one task.
	TaskID int64
	// Items counts extracted or persisted listings.
	Items int64
	// Skipped counts malformed items dropped during extraction.
	Skipped int64
	// Attempts counts fetch attempts spent on the group.
	Attempts int64
	// Dur captures execution latency for groups and cycles.
	Dur time.Duration
	// Note carries low-volume context such as failure class text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CycleID == [16]byte{} {
		return errors.New("cycle id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCycleStart, StageCycleDone, StageCleanupDone:
	case StageGroupDone, StageGroupFailed:
		if e.Query == "" {
			return errors.New("group events require a query")
		}
	case StageTaskPersisted:
		if e.TaskID == 0 {
			return errors.New("persistence events require a task id")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// CycleUUID converts the binary cycle ID to uuid.UUID.
func (e Event) CycleUUID() uuid.UUID {
	return uuid.UUID(e.CycleID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
