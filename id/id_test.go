package id

import (
	"encoding/json"
	"testing"
)

func TestNew_RoundTrip(t *testing.T) {
	rid := NewRunID()
	if rid.IsNil() {
		t.Fatal("NewRunID returned nil ID")
	}
	if rid.Prefix() != PrefixRun {
		t.Errorf("Prefix() = %q, want %q", rid.Prefix(), PrefixRun)
	}

	parsed, err := Parse(rid.String())
	if err != nil {
		t.Fatalf("Parse(%q): %v", rid.String(), err)
	}
	if parsed.String() != rid.String() {
		t.Errorf("round trip mismatch: %q != %q", parsed.String(), rid.String())
	}
}

func TestNew_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 1000 {
		s := NewRunID().String()
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate ID generated: %s", s)
		}
		seen[s] = struct{}{}
	}
}

func TestParse_Empty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("Parse(\"\") should fail")
	}
}

func TestParseWithPrefix_Mismatch(t *testing.T) {
	sid := NewScheduleID()
	if _, err := ParseRunID(sid.String()); err == nil {
		t.Fatalf("ParseRunID(%q) should reject sched prefix", sid.String())
	}
}

func TestParseRunID_Valid(t *testing.T) {
	rid := NewRunID()
	got, err := ParseRunID(rid.String())
	if err != nil {
		t.Fatalf("ParseRunID: %v", err)
	}
	if got.String() != rid.String() {
		t.Errorf("ParseRunID = %q, want %q", got.String(), rid.String())
	}
}

func TestID_JSON(t *testing.T) {
	rid := NewRunID()

	data, err := json.Marshal(rid)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded ID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.String() != rid.String() {
		t.Errorf("JSON round trip = %q, want %q", decoded.String(), rid.String())
	}
}

func TestID_JSON_Nil(t *testing.T) {
	data, err := json.Marshal(Nil)
	if err != nil {
		t.Fatalf("Marshal nil: %v", err)
	}
	if string(data) != `""` {
		t.Errorf("Marshal(Nil) = %s, want \"\"", data)
	}

	var decoded ID
	if err := json.Unmarshal([]byte(`""`), &decoded); err != nil {
		t.Fatalf("Unmarshal empty: %v", err)
	}
	if !decoded.IsNil() {
		t.Error("Unmarshal(\"\") should produce Nil ID")
	}
}

func TestID_SQL(t *testing.T) {
	rid := NewRunID()

	v, err := rid.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var scanned ID
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if scanned.String() != rid.String() {
		t.Errorf("SQL round trip = %q, want %q", scanned.String(), rid.String())
	}

	var fromNull ID
	if err := fromNull.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !fromNull.IsNil() {
		t.Error("Scan(nil) should produce Nil ID")
	}
}

func TestID_KSortable(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	// UUIDv7 suffixes generated in sequence sort in creation order.
	if a.String() >= b.String() {
		t.Skipf("ids generated in the same millisecond may tie: %s %s", a, b)
	}
}
