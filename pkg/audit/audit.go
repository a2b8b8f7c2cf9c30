// Package audit records who changed which fuel records and when.
// It defines the audit entry, actions, outcomes and the Logger interface
// implemented by the stdout, file, memory and no-op backends.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fueltracker/pkg/config"
	"fueltracker/pkg/domain"
)

// Action represents the type of action performed in an audit event.
type Action string

const (
	ActionCreate   Action = "CREATE"
	ActionUpdate   Action = "UPDATE"
	ActionDelete   Action = "DELETE"
	ActionImport   Action = "IMPORT"
	ActionExport   Action = "EXPORT"
	ActionRegister Action = "REGISTER"
	ActionLogin    Action = "LOGIN"
	ActionLogout   Action = "LOGOUT"
)

// Outcome represents the result of an audit action.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomeDenied  Outcome = "DENIED"
)

// Resource types.
const (
	ResourceRecord = "fuel_record"
	ResourceUser   = "user"
)

// Entry represents a single audit log record.
type Entry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Service      string         `json:"service"`
	Route        string         `json:"route,omitempty"` // "POST /api/v1/records", "cli add"
	Action       Action         `json:"action"`
	Outcome      Outcome        `json:"outcome"`
	UserID       string         `json:"user_id,omitempty"`
	Username     string         `json:"username,omitempty"`
	ClientIP     string         `json:"client_ip,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Resource     string         `json:"resource,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
	ErrorCode    string         `json:"error_code,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Changes      *ChangeSet     `json:"changes,omitempty"`
}

// ChangeSet describes changes made to a record by an update.
type ChangeSet struct {
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
	Fields []string       `json:"fields,omitempty"`
}

// Logger is the interface that audit backends implement.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, entry *Entry) error

	// Query retrieves entries matching the filter.
	// Only the memory backend supports it.
	Query(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	Close() error
}

// QueryFilter defines criteria for querying audit entries.
type QueryFilter struct {
	StartTime  *time.Time
	EndTime    *time.Time
	Action     Action
	Outcome    Outcome
	UserID     string
	Resource   string
	ResourceID string
	Limit      int
	Offset     int
}

// Matches reports whether the entry satisfies the filter.
func (f *QueryFilter) Matches(e *Entry) bool {
	if f == nil {
		return true
	}
	if f.StartTime != nil && e.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && !e.Timestamp.Before(*f.EndTime) {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Resource != "" && e.Resource != f.Resource {
		return false
	}
	if f.ResourceID != "" && e.ResourceID != f.ResourceID {
		return false
	}
	return true
}

// Config holds configuration parameters for the audit logger.
type Config struct {
	Enabled     bool
	Backend     string // stdout, file, memory, noop
	FilePath    string
	MaxSize     int // MB before rotation
	MaxBackups  int
	MaxAge      int // days
	Compress    bool
	BufferSize  int
	FlushPeriod time.Duration

	ExcludeRoutes []string
	MaskFields    []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		Backend:     "stdout",
		MaxSize:     50,
		MaxBackups:  5,
		MaxAge:      30,
		BufferSize:  1000,
		FlushPeriod: 5 * time.Second,
		MaskFields:  []string{"password", "token", "refresh_token", "secret"},
	}
}

// FromConfig builds an audit Config from the application configuration.
func FromConfig(cfg config.AuditConfig) *Config {
	c := DefaultConfig()
	c.Enabled = cfg.Enabled
	if cfg.Backend != "" {
		c.Backend = cfg.Backend
	}
	c.FilePath = cfg.FilePath
	if cfg.BufferSize > 0 {
		c.BufferSize = cfg.BufferSize
	}
	if cfg.FlushPeriod > 0 {
		c.FlushPeriod = cfg.FlushPeriod
	}
	c.ExcludeRoutes = cfg.ExcludeMethods
	return c
}

// Excluded reports whether a route is configured to be skipped.
func (c *Config) Excluded(route string) bool {
	for _, r := range c.ExcludeRoutes {
		if r == route {
			return true
		}
	}
	return false
}

// Builder provides a fluent API for constructing an Entry.
type Builder struct {
	entry *Entry
}

// NewEntry creates a Builder stamped with the current time.
func NewEntry() *Builder {
	return &Builder{
		entry: &Entry{
			Timestamp: time.Now(),
			Metadata:  make(map[string]any),
		},
	}
}

func (b *Builder) Service(s string) *Builder {
	b.entry.Service = s
	return b
}

func (b *Builder) Route(r string) *Builder {
	b.entry.Route = r
	return b
}

func (b *Builder) Action(a Action) *Builder {
	b.entry.Action = a
	return b
}

func (b *Builder) Outcome(o Outcome) *Builder {
	b.entry.Outcome = o
	return b
}

func (b *Builder) User(id, username string) *Builder {
	b.entry.UserID = id
	b.entry.Username = username
	return b
}

func (b *Builder) Client(ip, userAgent string) *Builder {
	b.entry.ClientIP = ip
	b.entry.UserAgent = userAgent
	return b
}

func (b *Builder) Resource(resource, resourceID string) *Builder {
	b.entry.Resource = resource
	b.entry.ResourceID = resourceID
	return b
}

func (b *Builder) RequestID(id string) *Builder {
	b.entry.RequestID = id
	return b
}

func (b *Builder) Duration(d time.Duration) *Builder {
	b.entry.DurationMs = d.Milliseconds()
	return b
}

// Error sets the error code and message of a failed action.
func (b *Builder) Error(code, message string) *Builder {
	b.entry.ErrorCode = code
	b.entry.ErrorMessage = message
	return b
}

func (b *Builder) Meta(key string, value any) *Builder {
	b.entry.Metadata[key] = value
	return b
}

func (b *Builder) Changes(changes *ChangeSet) *Builder {
	b.entry.Changes = changes
	return b
}

// Build finalizes the Entry, generating an ID if none was set.
func (b *Builder) Build() *Entry {
	if b.entry.ID == "" {
		b.entry.ID = uuid.NewString()
	}
	return b.entry
}

// MarshalJSON customizes the JSON serialization of an Entry.
func (e *Entry) MarshalJSON() ([]byte, error) {
	type Alias Entry
	return json.Marshal((*Alias)(e))
}

// recordFields returns the user-editable fields of a record.
func recordFields(r domain.FuelRecord) map[string]any {
	return map[string]any{
		"date":    r.Date,
		"amount":  r.Amount,
		"cost":    r.Cost,
		"mileage": r.Mileage,
		"station": r.Station,
	}
}

// RecordChanges builds a ChangeSet listing only the fields that differ.
func RecordChanges(before, after domain.FuelRecord) *ChangeSet {
	b, a := recordFields(before), recordFields(after)
	cs := &ChangeSet{Before: map[string]any{}, After: map[string]any{}}

	for _, key := range []string{"date", "amount", "cost", "mileage", "station"} {
		if fmt.Sprint(b[key]) == fmt.Sprint(a[key]) {
			continue
		}
		cs.Fields = append(cs.Fields, key)
		cs.Before[key] = b[key]
		cs.After[key] = a[key]
	}
	return cs
}

// RecordSnapshot returns the record fields for CREATE and DELETE entries.
func RecordSnapshot(r domain.FuelRecord) map[string]any {
	return recordFields(r)
}

// Mask replaces values of sensitive keys in metadata.
func (c *Config) Mask(meta map[string]any) {
	for _, f := range c.MaskFields {
		if _, ok := meta[f]; ok {
			meta[f] = "***"
		}
	}
}
