package domain

import (
	"encoding/json"
	"time"
)

// Action enumerates the audited state transitions.
type Action string

const (
	ActionApproveUser  Action = "approve_user"
	ActionBanUser      Action = "ban_user"
	ActionUnbanUser    Action = "unban_user"
	ActionPromoteAdmin Action = "promote_admin"
	ActionDemoteAdmin  Action = "demote_admin"
	ActionLogin        Action = "login"
	ActionLogout       Action = "logout"
)

func (a Action) Valid() bool {
	switch a {
	case ActionApproveUser, ActionBanUser, ActionUnbanUser,
		ActionPromoteAdmin, ActionDemoteAdmin, ActionLogin, ActionLogout:
		return true
	}
	return false
}

// ActivityEntry is an immutable audit record. Entries are appended, never updated.
type ActivityEntry struct {
	ID           string          `json:"id"`
	ActorID      string          `json:"user_id"`
	Action       Action          `json:"action"`
	TargetUserID *string         `json:"target_user_id,omitempty"`
	Details      json.RawMessage `json:"details,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}
