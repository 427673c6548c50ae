package handler

import "encoding/json"

// registerRequest is the POST /register payload. Snapshots are opaque
// documents; the gateway stores them without parsing.
type registerRequest struct {
	OwnerID          string                     `json:"owner_id" validate:"required"`
	Username         string                     `json:"username" validate:"required"`
	Endpoint         string                     `json:"endpoint" validate:"required,url"`
	InitialSnapshots map[string]json.RawMessage `json:"initial_snapshots,omitempty"`
}

// heartbeatRequest is the optional POST /heartbeat/{token} payload. Snapshots
// carries inline document updates; Refresh names kinds the gateway should
// re-fetch from the backend in the background.
type heartbeatRequest struct {
	Snapshots map[string]json.RawMessage `json:"snapshots,omitempty"`
	Refresh   []string                   `json:"refresh,omitempty" validate:"omitempty,dive,oneof=home files behaviors"`
}
