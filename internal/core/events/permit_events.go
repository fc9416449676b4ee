package events

import (
	"time"
)

const (
	EventTypePermitSubmitted    = "permit.submitted"
	EventTypePermitSlotApproved = "permit.slot_approved"
	EventTypePermitApproved     = "permit.approved"
	EventTypePermitRejected     = "permit.rejected"
)

type PermitSubmittedEvent struct {
	BaseEvent
	PermitID  int64 `json:"permit_id"`
	TenantID  int64 `json:"tenant_id"`
	CreatorID int64 `json:"creator_id"`
	Coworkers int   `json:"coworkers"`
}

func NewPermitSubmittedEvent(permitID, tenantID, creatorID int64, coworkers int) *PermitSubmittedEvent {
	now := time.Now()
	return &PermitSubmittedEvent{
		BaseEvent: BaseEvent{
			ID:        NewEventID(now),
			Type:      EventTypePermitSubmitted,
			Timestamp: now,
			Data: map[string]interface{}{
				"permit_id":  permitID,
				"tenant_id":  tenantID,
				"creator_id": creatorID,
				"coworkers":  coworkers,
			},
		},
		PermitID:  permitID,
		TenantID:  tenantID,
		CreatorID: creatorID,
		Coworkers: coworkers,
	}
}

// PermitSlotApprovedEvent is emitted for every successful slot signature,
// including the one that completes the permit.
type PermitSlotApprovedEvent struct {
	BaseEvent
	PermitID   int64     `json:"permit_id"`
	TenantID   int64     `json:"tenant_id"`
	RoleType   string    `json:"role_type"`
	ApprovedBy int64     `json:"approved_by"`
	ApprovedAt time.Time `json:"approved_at"`
	Status     string    `json:"status"`
}

func NewPermitSlotApprovedEvent(permitID, tenantID int64, roleType string, approvedBy int64, approvedAt time.Time, status string) *PermitSlotApprovedEvent {
	now := time.Now()
	return &PermitSlotApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        NewEventID(now),
			Type:      EventTypePermitSlotApproved,
			Timestamp: now,
			Data: map[string]interface{}{
				"permit_id":   permitID,
				"tenant_id":   tenantID,
				"role_type":   roleType,
				"approved_by": approvedBy,
				"approved_at": approvedAt,
				"status":      status,
			},
		},
		PermitID:   permitID,
		TenantID:   tenantID,
		RoleType:   roleType,
		ApprovedBy: approvedBy,
		ApprovedAt: approvedAt,
		Status:     status,
	}
}

type PermitApprovedEvent struct {
	BaseEvent
	PermitID           int64 `json:"permit_id"`
	TenantID           int64 `json:"tenant_id"`
	CreatorID          int64 `json:"creator_id"`
	EngineerApprovedBy int64 `json:"engineer_approved_by"`
	IsgApprovedBy      int64 `json:"isg_approved_by"`
}

func NewPermitApprovedEvent(permitID, tenantID, creatorID, engineerBy, isgBy int64) *PermitApprovedEvent {
	now := time.Now()
	return &PermitApprovedEvent{
		BaseEvent: BaseEvent{
			ID:        NewEventID(now),
			Type:      EventTypePermitApproved,
			Timestamp: now,
			Data: map[string]interface{}{
				"permit_id":            permitID,
				"tenant_id":            tenantID,
				"creator_id":           creatorID,
				"engineer_approved_by": engineerBy,
				"isg_approved_by":      isgBy,
			},
		},
		PermitID:           permitID,
		TenantID:           tenantID,
		CreatorID:          creatorID,
		EngineerApprovedBy: engineerBy,
		IsgApprovedBy:      isgBy,
	}
}

type PermitRejectedEvent struct {
	BaseEvent
	PermitID   int64  `json:"permit_id"`
	TenantID   int64  `json:"tenant_id"`
	RejectedBy int64  `json:"rejected_by"`
	Reason     string `json:"reason"`
}

func NewPermitRejectedEvent(permitID, tenantID, rejectedBy int64, reason string) *PermitRejectedEvent {
	now := time.Now()
	return &PermitRejectedEvent{
		BaseEvent: BaseEvent{
			ID:        NewEventID(now),
			Type:      EventTypePermitRejected,
			Timestamp: now,
			Data: map[string]interface{}{
				"permit_id":   permitID,
				"tenant_id":   tenantID,
				"rejected_by": rejectedBy,
				"reason":      reason,
			},
		},
		PermitID:   permitID,
		TenantID:   tenantID,
		RejectedBy: rejectedBy,
		Reason:     reason,
	}
}
