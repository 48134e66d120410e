// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package step defines the Step, Intervention, and Checkpoint types that
// flow from the Buffer through the Controller into History.
package step

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentstep/pipeline/pkg/stepmsg"
)

// Type classifies the kind of work a Step represents.
type Type string

const (
	TypeFileOperation    Type = "file_operation"
	TypeCodeModification Type = "code_modification"
	TypeSystemCommand    Type = "system_command"
	TypeExploration      Type = "exploration"
	TypeAnalysis         Type = "analysis"
	TypeCommunication    Type = "communication"
	TypeUnknown          Type = "unknown"
)

// Status is the lifecycle state of a Step.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusTimeout    Status = "timeout"
	StatusAborted    Status = "aborted"
	StatusError      Status = "error"
)

// IsTerminal reports whether s is one of the statuses that closes a Step.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusTimeout, StatusAborted, StatusError:
		return true
	default:
		return false
	}
}

// ReviewStatus is the outcome of an optional Controller review.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// Step is a coherent, reviewable unit of work assembled from one or more
// Messages. A Step is owned by the Buffer until it reaches a terminal
// Status; after that, mutation is restricted to Controller-applied
// transitions (SetReviewStatus, AddIntervention, Abort, MergeMetadata).
type Step struct {
	ID          string
	Type        Type
	Description string

	StartedAt   time.Time
	CompletedAt time.Time // zero means not yet completed — invariant 1

	Status       Status
	ReviewStatus ReviewStatus // empty means "not applicable"

	Metadata      map[string]any
	Interventions []Intervention

	messages  []stepmsg.Message
	toolsUsed []string
	toolSeen  map[string]struct{}
}

// New creates an in-progress Step with the given id and detected type,
// started at the given time.
func New(id string, typ Type, startedAt time.Time) *Step {
	return &Step{
		ID:        id,
		Type:      typ,
		StartedAt: startedAt,
		Status:    StatusInProgress,
		Metadata:  make(map[string]any),
		toolSeen:  make(map[string]struct{}),
	}
}

// AppendMessage adds a Message to the Step, preserving arrival order, and
// folds any tool names it mentions into ToolsUsed (invariant 3). It panics
// if the Step has already reached a terminal status — the Buffer must not
// append to a Step it has already closed.
func (s *Step) AppendMessage(m stepmsg.Message) {
	if s.Status.IsTerminal() {
		panic("step: AppendMessage called on a terminal step")
	}
	s.messages = append(s.messages, m)
	for _, name := range m.ToolNames() {
		if _, ok := s.toolSeen[name]; ok {
			continue
		}
		s.toolSeen[name] = struct{}{}
		s.toolsUsed = append(s.toolsUsed, name)
	}
}

// Messages returns the Step's messages in arrival order.
func (s *Step) Messages() []stepmsg.Message {
	return s.messages
}

// ToolsUsed returns the deduplicated, insertion-ordered set of tool names
// mentioned across the Step's messages.
func (s *Step) ToolsUsed() []string {
	return s.toolsUsed
}

// Complete transitions the Step to a terminal status, setting CompletedAt.
// It is a no-op if the Step is already terminal.
func (s *Step) Complete(status Status, completedAt time.Time) {
	if s.Status.IsTerminal() {
		return
	}
	if !status.IsTerminal() {
		panic("step: Complete called with a non-terminal status")
	}
	s.Status = status
	s.CompletedAt = completedAt
}

// SetReviewStatus records the Controller's review outcome for this Step.
// Only valid once the Step is terminal.
func (s *Step) SetReviewStatus(rs ReviewStatus) {
	s.ReviewStatus = rs
}

// SetStatus overrides an already-emitted Step's terminal status and
// completion time. Unlike Complete, it is not guarded against a Step that
// is already terminal: a Step only reaches the Controller once the Buffer
// has closed it, and the Controller is the one collaborator allowed to
// re-set that status afterward (e.g. completed to aborted on a rejected
// review, or aborted on skip).
func (s *Step) SetStatus(status Status, completedAt time.Time) {
	if !status.IsTerminal() {
		panic("step: SetStatus called with a non-terminal status")
	}
	s.Status = status
	s.CompletedAt = completedAt
}

// AddIntervention appends an Intervention to the Step's ordered log.
func (s *Step) AddIntervention(iv Intervention) {
	s.Interventions = append(s.Interventions, iv)
}

// Abort forcibly closes an in-progress Step, marking it aborted.
func (s *Step) Abort(at time.Time) {
	if s.Status.IsTerminal() {
		return
	}
	s.Status = StatusAborted
	s.CompletedAt = at
}

// MergeMetadata merges kv into the Step's metadata map. Existing keys not
// present in kv are preserved; keys present in both are overwritten for
// that key only, never bulk-replaced.
func (s *Step) MergeMetadata(kv map[string]any) {
	if s.Metadata == nil {
		s.Metadata = make(map[string]any)
	}
	for k, v := range kv {
		s.Metadata[k] = v
	}
}

// NewID generates a fresh, run-unique Step identifier.
func NewID() string {
	return uuid.NewString()
}

// InterventionType classifies the kind of Controller-supplied correction.
type InterventionType string

const (
	InterventionGuidance  InterventionType = "guidance"
	InterventionCorrection InterventionType = "correction"
	InterventionContext    InterventionType = "context"
)

// InterventionPriority orders interventions for sequential application;
// Critical applies first.
type InterventionPriority string

const (
	PriorityLow      InterventionPriority = "low"
	PriorityMedium   InterventionPriority = "medium"
	PriorityHigh     InterventionPriority = "high"
	PriorityCritical InterventionPriority = "critical"
)

// rank returns the application order for a priority, lower applies first.
func (p InterventionPriority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Less reports whether p should be applied before other.
func (p InterventionPriority) Less(other InterventionPriority) bool {
	return p.rank() < other.rank()
}

// InterventionStatus tracks whether an Intervention was applied.
type InterventionStatus string

const (
	InterventionPendingStatus     InterventionStatus = "pending"
	InterventionAppliedStatus     InterventionStatus = "applied"
	InterventionFailedStatus      InterventionStatus = "failed"
	InterventionRolledBackStatus  InterventionStatus = "rolled_back"
)

// Intervention is a Controller-supplied correction applied to a Step.
type Intervention struct {
	ID        string
	Type      InterventionType
	Content   string
	Priority  InterventionPriority
	AppliedAt time.Time // zero means not yet applied
	Status    InterventionStatus
}
