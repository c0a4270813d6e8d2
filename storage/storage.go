// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("version conflict")
)

// PushState is the lifecycle state of a push record.
type PushState string

const (
	PushPending    PushState = "PENDING"
	PushReady      PushState = "READY"
	PushSending    PushState = "SENDING"
	PushRetrying   PushState = "RETRYING"
	PushScheduling PushState = "SCHEDULING"
	PushCompleted  PushState = "COMPLETED"
	PushDie        PushState = "DIE"
)

// Terminal reports whether no further transitions are allowed from s.
func (s PushState) Terminal() bool {
	return s == PushCompleted || s == PushDie
}

// ScheduleState is the lifecycle state of a retry schedule record.
type ScheduleState string

const (
	ScheduleSending ScheduleState = "SENDING"
	ScheduleIdle    ScheduleState = "IDLE"
)

// RouteKind identifies the transport used to reach a recipient.
type RouteKind string

const (
	RouteRPC  RouteKind = "rpc"
	RouteHTTP RouteKind = "http"
	RouteMQTT RouteKind = "mqtt"
)

// RPCRoute addresses a recipient over the direct-RPC (websocket) channel.
type RPCRoute struct {
	Addr string            `json:"addr" yaml:"addr"`
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// HTTPRoute addresses a recipient over the request/response HTTP channel.
type HTTPRoute struct {
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// MQTTRoute addresses a recipient over the MQTT push channel.
type MQTTRoute struct {
	Topic string `json:"topic" yaml:"topic"`
}

// Route is the tagged route descriptor attached to a delivery target.
// Exactly one variant matching Kind is expected to be populated; handlers
// that cannot build a transport target from it report a send failure.
type Route struct {
	Kind RouteKind  `json:"kind" yaml:"kind"`
	RPC  *RPCRoute  `json:"rpc,omitempty" yaml:"rpc,omitempty"`
	HTTP *HTTPRoute `json:"http,omitempty" yaml:"http,omitempty"`
	MQTT *MQTTRoute `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
}

// Target identifies the recipient of a push together with its route.
type Target struct {
	RoleID string `json:"role_id"`
	Route  Route  `json:"route"`
}

// Content is an immutable unit of mail content. Push and broadcast records
// reference it by ID so one content can back many deliveries.
type Content struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Attachment string    `json:"attachment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Push is a single-recipient mail instance. Terminal records are kept for
// audit and never deleted.
type Push struct {
	ID         string    `json:"id"`
	Target     Target    `json:"target"`
	ContentID  string    `json:"content_id"`
	State      PushState `json:"state"`
	SendTime   time.Time `json:"send_time"`
	RetryCount int       `json:"retry_count"`
	CreatedAt  time.Time `json:"created_at"`

	// Version guards against concurrent scanners mutating the same record.
	// Save rejects a record whose version does not match the stored one.
	Version int64 `json:"version"`
}

// Schedule decouples retry timing from the push record it references.
// Keyed by push ID, so at most one active schedule exists per push.
type Schedule struct {
	PushID     string        `json:"push_id"`
	State      ScheduleState `json:"state"`
	RetryCount int           `json:"retry_count"`
	Version    int64         `json:"version"`
}

// Broadcast is one append-only group mail record. IDs are assigned from a
// monotonic sequence at creation and order the per-role sync cursor.
type Broadcast struct {
	ID        int64     `json:"id"`
	ContentID string    `json:"content_id"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleSync is the per-role high-water mark into the broadcast sequence.
type RoleSync struct {
	RoleID     string    `json:"role_id"`
	SyncID     int64     `json:"sync_id"`
	CreateTime time.Time `json:"create_time"`
}

// Store is the composite storage interface covering all record kinds.
type Store interface {
	// Contents returns the content store.
	Contents() ContentStore

	// Pushes returns the push record store.
	Pushes() PushStore

	// Schedules returns the retry schedule store.
	Schedules() ScheduleStore

	// Broadcasts returns the group broadcast store.
	Broadcasts() BroadcastStore

	// RoleSyncs returns the role sync cursor store.
	RoleSyncs() RoleSyncStore

	// Close closes all storage backends.
	Close() error
}

// ContentStore handles content persistence.
type ContentStore interface {
	// Save persists a content record.
	Save(content *Content) error

	// Get retrieves a content record by ID.
	Get(id string) (*Content, error)

	// GetAll retrieves the content records for the given IDs.
	// Missing IDs are skipped, not reported as errors.
	GetAll(ids []string) ([]*Content, error)

	// Delete removes a content record.
	Delete(id string) error
}

// PushStore handles push record persistence.
type PushStore interface {
	// Save persists a push record with an optimistic version check: the
	// record's Version must match the stored version (0 for a new record),
	// otherwise ErrConflict is returned. On success the record's Version
	// is advanced.
	Save(push *Push) error

	// SaveAll persists a batch of push records. Records losing the version
	// check are skipped; their stale in-memory copy loses again on the
	// next Save.
	SaveAll(pushes []*Push) error

	// Get retrieves a push record by ID.
	Get(id string) (*Push, error)

	// ListByState returns all push records in the given state.
	ListByState(state PushState) ([]*Push, error)
}

// ScheduleStore handles retry schedule persistence.
type ScheduleStore interface {
	// Save persists a schedule record, with the same version semantics as
	// PushStore.Save.
	Save(schedule *Schedule) error

	// SaveAll persists a batch, skipping version-check losers.
	SaveAll(schedules []*Schedule) error

	// GetByPush retrieves the schedule referencing the given push ID.
	GetByPush(pushID string) (*Schedule, error)

	// ListByState returns all schedules in the given state.
	ListByState(state ScheduleState) ([]*Schedule, error)

	// Delete removes the schedule for a push ID.
	Delete(pushID string) error
}

// BroadcastStore handles the append-only group broadcast log.
type BroadcastStore interface {
	// Create appends a broadcast record, assigning the next sequence ID.
	Create(broadcast *Broadcast) error

	// Get retrieves a broadcast record by ID.
	Get(id int64) (*Broadcast, error)

	// List returns all broadcast records.
	List() ([]*Broadcast, error)
}

// RoleSyncStore handles role sync cursor persistence.
type RoleSyncStore interface {
	// Get retrieves the cursor for a role.
	Get(roleID string) (*RoleSync, error)

	// Save persists a cursor.
	Save(cursor *RoleSync) error
}
