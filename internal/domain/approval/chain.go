package approval

import (
	"sort"

	"github.com/garyjia/travel-approval/internal/domain/entity"
)

// Reasons a manager step is left out of the chain
const (
	OmitSelfApprovalEligible      = "self_approval_eligible"
	OmitGroundTransportEscalation = "ground_transport_escalation"
)

// ManagerDecision states whether the line manager takes part in the chain
type ManagerDecision struct {
	Include bool   `json:"include"`
	Reason  string `json:"reason,omitempty"`
}

// IncludeManager is the decision to add the manager step
func IncludeManager() ManagerDecision {
	return ManagerDecision{Include: true}
}

// OmitManager is the decision to leave the manager step out for reason
func OmitManager(reason string) ManagerDecision {
	return ManagerDecision{Include: false, Reason: reason}
}

// decideManager computes the manager decision once from the resolution facts
func decideManager(selfEligible bool, triggers Triggers, chroByGroundTransport bool) ManagerDecision {
	switch {
	case selfEligible && triggers.Any():
		return OmitManager(OmitSelfApprovalEligible)
	case chroByGroundTransport:
		return OmitManager(OmitGroundTransportEscalation)
	default:
		return IncludeManager()
	}
}

// DedupeAndSequence merges entries that share a user, keeping the earliest
// position and OR-ing their flags, then numbers the result 1..N. Entries
// without a user are dropped. The input is not modified.
func DedupeAndSequence(entries []entity.ApproverEntry) []entity.ApproverEntry {
	ordered := make([]entity.ApproverEntry, 0, len(entries))
	for _, e := range entries {
		if e.User != nil {
			ordered = append(ordered, e)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	result := make([]entity.ApproverEntry, 0, len(ordered))
	index := make(map[int64]int, len(ordered))
	for _, e := range ordered {
		if i, seen := index[e.User.ID]; seen {
			merged := &result[i]
			merged.IsRequired = merged.IsRequired || e.IsRequired
			merged.CanView = merged.CanView || e.CanView
			merged.CanApprove = merged.CanApprove || e.CanApprove
			continue
		}
		index[e.User.ID] = len(result)
		result = append(result, e)
	}

	for i := range result {
		result[i].Sequence = i + 1
	}
	return result
}
