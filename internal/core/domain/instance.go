package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// DefaultLivenessTTL is the maximum age of a heartbeat for an instance to be
// considered online.
const DefaultLivenessTTL = 300 * time.Second

// Snapshot kinds the gateway mirrors from backends.
const (
	SnapshotHome      = "home"
	SnapshotFiles     = "files"
	SnapshotBehaviors = "behaviors"
)

var ErrValidation = errors.New("missing required fields")
var ErrInstanceNotFound = errors.New("instance not found")
var ErrInstanceOffline = errors.New("instance not responding")
var ErrUpstreamUnreachable = errors.New("upstream unreachable")
var ErrUpstreamTimeout = errors.New("upstream timed out")
var ErrAccessDenied = errors.New("access denied")
var ErrUnknownSnapshotKind = errors.New("unknown snapshot kind")

// KnownSnapshotKind reports whether kind names one of the mirrored read views.
func KnownSnapshotKind(kind string) bool {
	switch kind {
	case SnapshotHome, SnapshotFiles, SnapshotBehaviors:
		return true
	}
	return false
}

// Snapshot is an opaque cached read-view document mirrored from a backend.
// The gateway never parses or validates Data; it is a transparent cache, not
// a schema owner.
type Snapshot struct {
	Data     json.RawMessage `json:"data" bson:"data"`
	LastSync time.Time       `json:"last_sync" bson:"last_sync"`
}

// Instance is the core aggregate root: a registered backend reachable via
// Endpoint, identified publicly by Username.
type Instance struct {
	ID            string              `json:"-" bson:"_id,omitempty"`
	OwnerID       string              `json:"owner_id" bson:"owner_id"`
	Username      string              `json:"username" bson:"username"`
	Endpoint      string              `json:"endpoint" bson:"endpoint"`
	Token         string              `json:"token,omitempty" bson:"token"`
	LastHeartbeat time.Time           `json:"last_heartbeat" bson:"last_heartbeat"`
	Snapshots     map[string]Snapshot `json:"snapshots,omitempty" bson:"snapshots,omitempty"`
	CreatedAt     time.Time           `json:"created_at" bson:"created_at"`
}

// Online reports whether the instance's last heartbeat is within ttl of now.
// The boundary is inclusive: an instance heartbeated exactly ttl ago is still
// online. Liveness is derived, never stored, and never deletes a record.
func (i *Instance) Online(now time.Time, ttl time.Duration) bool {
	return now.Sub(i.LastHeartbeat) <= ttl
}
