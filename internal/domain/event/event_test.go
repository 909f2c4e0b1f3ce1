package event

import (
	"testing"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"submitted", TypeApplicationSubmitted, true},
		{"self approved", TypeApplicationSelfApproved, true},
		{"approval requested", TypeApprovalRequested, true},
		{"approval completed", TypeApprovalCompleted, true},
		{"rejected", TypeApplicationRejected, true},
		{"cancelled", TypeApplicationCancelled, true},
		{"status changed", TypeStatusChanged, true},
		{"unknown", Type("application.exploded"), false},
		{"empty", Type(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{"approver_id": int64(7)}
	evt := NewEvent(TypeApprovalRequested, 123, payload)

	if evt.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if evt.Type != TypeApprovalRequested {
		t.Errorf("Event Type = %v, want %v", evt.Type, TypeApprovalRequested)
	}
	if evt.ApplicationID != 123 {
		t.Errorf("Event ApplicationID = %v, want %v", evt.ApplicationID, 123)
	}
	if evt.CorrelationID == "" {
		t.Error("Event CorrelationID should not be empty")
	}
	if evt.Timestamp.IsZero() {
		t.Error("Event Timestamp should be set")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	evt := NewEventWithCorrelation(TypeApprovalCompleted, 789, nil, "corr-1")

	if evt.CorrelationID != "corr-1" {
		t.Errorf("Event CorrelationID = %v, want %v", evt.CorrelationID, "corr-1")
	}
	if evt.ApplicationID != 789 {
		t.Errorf("Event ApplicationID = %v, want %v", evt.ApplicationID, 789)
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeStatusChanged, 1, map[string]interface{}{"previous_status": "draft"})
	modified := original.WithPayload("new_status", "pending_manager")

	if _, ok := original.Payload["new_status"]; ok {
		t.Error("WithPayload should not mutate the original event")
	}
	if modified.GetPayloadString("new_status") != "pending_manager" {
		t.Errorf("modified new_status = %q", modified.GetPayloadString("new_status"))
	}
	if modified.GetPayloadString("previous_status") != "draft" {
		t.Error("modified event should keep existing payload keys")
	}
	if modified.ID != original.ID || modified.ApplicationID != original.ApplicationID {
		t.Error("modified event should keep identity fields")
	}
}

func TestEvent_PayloadAccessors(t *testing.T) {
	evt := NewEvent(TypeApprovalRequested, 1, map[string]interface{}{
		"name":     "Asha",
		"int":      5,
		"int64":    int64(6),
		"float":    float64(7),
		"flag":     true,
		"notabool": "true",
	})

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"string", evt.GetPayloadString("name"), "Asha"},
		{"missing string", evt.GetPayloadString("missing"), ""},
		{"int", evt.GetPayloadInt("int"), int64(5)},
		{"int64", evt.GetPayloadInt("int64"), int64(6)},
		{"float as int", evt.GetPayloadInt("float"), int64(7)},
		{"missing int", evt.GetPayloadInt("missing"), int64(0)},
		{"bool", evt.GetPayloadBool("flag"), true},
		{"string is not bool", evt.GetPayloadBool("notabool"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		evt := NewEvent(TypeStatusChanged, int64(i), nil)
		if seen[evt.ID] {
			t.Fatalf("duplicate event ID %s", evt.ID)
		}
		seen[evt.ID] = true
	}
}
