package labels

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Positional(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.names")
	content := "person\n\n  car  \nbicycle\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write labels: %v", err)
	}

	table, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if table.Len() != 4 {
		t.Fatalf("Expected 4 entries, got %d", table.Len())
	}

	tests := []struct {
		classID int
		want    string
	}{
		{0, "person"},
		{2, "car"},
		{3, "bicycle"},
	}
	for _, tt := range tests {
		name, err := table.Name(tt.classID)
		if err != nil || name != tt.want {
			t.Errorf("Name(%d) = %q, %v; expected %s", tt.classID, name, err, tt.want)
		}
	}

	if _, err := table.Name(1); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("Blank line should resolve to ErrUnknownClass, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt"), 0); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestName_Offset(t *testing.T) {
	table := New([]string{"person", "bicycle"}, 1)

	tests := []struct {
		classID int
		want    string
		wantErr bool
	}{
		{0, "", true},
		{1, "person", false},
		{2, "bicycle", false},
		{3, "", true},
		{-5, "", true},
	}

	for _, tt := range tests {
		got, err := table.Name(tt.classID)
		if (err != nil) != tt.wantErr {
			t.Errorf("Name(%d) error = %v, wantErr %v", tt.classID, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, ErrUnknownClass) {
			t.Errorf("Name(%d) error should wrap ErrUnknownClass, got %v", tt.classID, err)
		}
		if got != tt.want {
			t.Errorf("Name(%d) = %q, expected %q", tt.classID, got, tt.want)
		}
	}
}

func TestName_NilTable(t *testing.T) {
	var table *Table
	if _, err := table.Name(0); !errors.Is(err, ErrUnknownClass) {
		t.Errorf("Expected ErrUnknownClass from nil table, got %v", err)
	}
}
