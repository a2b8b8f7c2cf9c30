package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fueltracker/pkg/config"
	"fueltracker/pkg/domain"
)

func TestNewEntry(t *testing.T) {
	entry := NewEntry().
		Service("fuel-svc").
		Route("POST /api/v1/records").
		Action(ActionCreate).
		Outcome(OutcomeSuccess).
		User("user-123", "driver@example.com").
		Client("127.0.0.1", "test-agent").
		Resource(ResourceRecord, "rec-456").
		RequestID("req-789").
		Duration(100*time.Millisecond).
		Meta("station", "ENEOS").
		Build()

	if entry.Service != "fuel-svc" {
		t.Errorf("expected service 'fuel-svc', got %s", entry.Service)
	}
	if entry.Route != "POST /api/v1/records" {
		t.Errorf("unexpected route %s", entry.Route)
	}
	if entry.Action != ActionCreate || entry.Outcome != OutcomeSuccess {
		t.Errorf("unexpected action/outcome %s/%s", entry.Action, entry.Outcome)
	}
	if entry.UserID != "user-123" || entry.Username != "driver@example.com" {
		t.Errorf("unexpected user %s/%s", entry.UserID, entry.Username)
	}
	if entry.Resource != ResourceRecord || entry.ResourceID != "rec-456" {
		t.Errorf("unexpected resource %s/%s", entry.Resource, entry.ResourceID)
	}
	if entry.RequestID != "req-789" {
		t.Errorf("expected requestID 'req-789', got %s", entry.RequestID)
	}
	if entry.DurationMs != 100 {
		t.Errorf("expected durationMs 100, got %d", entry.DurationMs)
	}
	if entry.Metadata["station"] != "ENEOS" {
		t.Errorf("unexpected metadata %v", entry.Metadata)
	}
	if entry.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestBuilder_Error(t *testing.T) {
	entry := NewEntry().
		Action(ActionImport).
		Outcome(OutcomeFailure).
		Error("IMPORT_FORMAT", "CSVファイルにデータがありません").
		Build()

	if entry.ErrorCode != "IMPORT_FORMAT" {
		t.Errorf("expected error code IMPORT_FORMAT, got %s", entry.ErrorCode)
	}
	if entry.ErrorMessage == "" {
		t.Error("expected error message")
	}
}

func TestBuild_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := NewEntry().Build().ID
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestEntry_MarshalJSON(t *testing.T) {
	entry := NewEntry().
		Service("fuel-svc").
		Action(ActionDelete).
		Outcome(OutcomeSuccess).
		Resource(ResourceRecord, "rec-1").
		Build()

	data, err := json.Marshal(entry)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	if decoded["action"] != "DELETE" {
		t.Errorf("expected action DELETE, got %v", decoded["action"])
	}
	if decoded["resource"] != ResourceRecord {
		t.Errorf("expected resource %s, got %v", ResourceRecord, decoded["resource"])
	}
	if _, ok := decoded["changes"]; ok {
		t.Error("changes should be omitted when nil")
	}
}

func TestRecordChanges(t *testing.T) {
	before := domain.FuelRecord{Date: "2024-03-01", Amount: 40, Cost: 6000, Mileage: 10000, Station: "ENEOS"}
	after := before
	after.Cost = 6200
	after.Station = "Shell"

	cs := RecordChanges(before, after)

	if len(cs.Fields) != 2 || cs.Fields[0] != "cost" || cs.Fields[1] != "station" {
		t.Fatalf("unexpected fields %v", cs.Fields)
	}
	if cs.Before["cost"] != int64(6000) || cs.After["cost"] != int64(6200) {
		t.Errorf("unexpected cost change %v -> %v", cs.Before["cost"], cs.After["cost"])
	}
	if _, ok := cs.Before["amount"]; ok {
		t.Error("unchanged field should not be listed")
	}
}

func TestRecordSnapshot(t *testing.T) {
	snap := RecordSnapshot(domain.FuelRecord{Date: "2024-03-01", Amount: 40.5, Station: "ENEOS"})
	if snap["date"] != "2024-03-01" || snap["amount"] != 40.5 || snap["station"] != "ENEOS" {
		t.Errorf("unexpected snapshot %v", snap)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Enabled {
		t.Error("expected audit to be enabled by default")
	}
	if cfg.Backend != "stdout" {
		t.Errorf("expected backend 'stdout', got %s", cfg.Backend)
	}
	if cfg.BufferSize != 1000 {
		t.Errorf("expected buffer size 1000, got %d", cfg.BufferSize)
	}
	if len(cfg.MaskFields) == 0 {
		t.Error("expected default mask fields")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.AuditConfig{
		Enabled:        true,
		Backend:        "file",
		FilePath:       "/tmp/audit.log",
		ExcludeMethods: []string{"GET /api/v1/records"},
	})

	if cfg.Backend != "file" || cfg.FilePath != "/tmp/audit.log" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !cfg.Excluded("GET /api/v1/records") {
		t.Error("route should be excluded")
	}
	if cfg.Excluded("POST /api/v1/records") {
		t.Error("route should not be excluded")
	}
}

func TestConfig_Mask(t *testing.T) {
	cfg := DefaultConfig()
	meta := map[string]any{"password": "secret123", "station": "ENEOS"}

	cfg.Mask(meta)

	if meta["password"] != "***" {
		t.Errorf("password should be masked, got %v", meta["password"])
	}
	if meta["station"] != "ENEOS" {
		t.Errorf("station should be kept, got %v", meta["station"])
	}
}

func TestQueryFilter_Matches(t *testing.T) {
	now := time.Now()
	entry := NewEntry().Action(ActionCreate).Outcome(OutcomeSuccess).User("u1", "").Resource(ResourceRecord, "r1").Build()
	entry.Timestamp = now

	start := now.Add(-time.Minute)
	end := now.Add(time.Minute)
	past := now.Add(-time.Hour)

	tests := []struct {
		name   string
		filter *QueryFilter
		want   bool
	}{
		{"nil filter", nil, true},
		{"empty filter", &QueryFilter{}, true},
		{"matching user and action", &QueryFilter{UserID: "u1", Action: ActionCreate}, true},
		{"other user", &QueryFilter{UserID: "u2"}, false},
		{"other action", &QueryFilter{Action: ActionDelete}, false},
		{"other outcome", &QueryFilter{Outcome: OutcomeFailure}, false},
		{"resource id", &QueryFilter{Resource: ResourceRecord, ResourceID: "r1"}, true},
		{"time range", &QueryFilter{StartTime: &start, EndTime: &end}, true},
		{"ended before", &QueryFilter{EndTime: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(entry); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder_FromContext(t *testing.T) {
	ctx := WithRequest(context.Background(), RequestInfo{
		RequestID: "req-1",
		Route:     "POST /api/v1/records",
		ClientIP:  "10.0.0.1",
		UserAgent: "curl/8",
		UserID:    "u1",
	})

	e := NewEntry().User("u2", "").FromContext(ctx).Build()

	if e.RequestID != "req-1" || e.Route != "POST /api/v1/records" {
		t.Errorf("request fields not copied: %+v", e)
	}
	if e.ClientIP != "10.0.0.1" || e.UserAgent != "curl/8" {
		t.Errorf("client fields not copied: %+v", e)
	}
	if e.UserID != "u2" {
		t.Errorf("UserID = %q, explicit value must win", e.UserID)
	}

	plain := NewEntry().FromContext(context.Background()).Build()
	if plain.RequestID != "" {
		t.Errorf("RequestID = %q, want empty", plain.RequestID)
	}
}
