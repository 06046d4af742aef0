package dicomdir

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewResolvesFileToParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DescriptorName)
	if err := os.WriteFile(path, []byte{0}, 0o644); err != nil {
		t.Fatal(err)
	}

	if got := New(path).Dir(); got != dir {
		t.Fatalf("Dir() = %q, want %q", got, dir)
	}
	if got := New(dir).Dir(); got != dir {
		t.Fatalf("Dir() from directory = %q, want %q", got, dir)
	}
}

func TestMissingDescriptorIsMetadataMissing(t *testing.T) {
	r := New(t.TempDir())
	if _, err := r.PatientName(); !errors.Is(err, ErrMetadataMissing) {
		t.Fatalf("expected ErrMetadataMissing, got %v", err)
	}
	// Cached failure: the second accessor must not re-read the directory.
	if _, err := r.AcquisitionTime(); !errors.Is(err, ErrMetadataMissing) {
		t.Fatalf("expected cached ErrMetadataMissing, got %v", err)
	}
}

func TestCorruptDescriptorIsMetadataMissing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, DescriptorName), []byte("not dicom"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(dir).SeriesFiles(); !errors.Is(err, ErrMetadataMissing) {
		t.Fatalf("expected ErrMetadataMissing, got %v", err)
	}
}

func TestParseDT(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"20240115093045", time.Date(2024, 1, 15, 9, 30, 45, 0, time.Local)},
		{"20240115093045.250000", time.Date(2024, 1, 15, 9, 30, 45, 250_000_000, time.Local)},
		{"202401150930", time.Date(2024, 1, 15, 9, 30, 0, 0, time.Local)},
		{"20240115", time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)},
	}
	for _, tc := range cases {
		got, err := ParseDT(tc.in)
		if err != nil {
			t.Fatalf("ParseDT(%q): %v", tc.in, err)
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseDT(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseDTOffset(t *testing.T) {
	got, err := ParseDT("20240115093045+0800")
	if err != nil {
		t.Fatalf("ParseDT: %v", err)
	}
	want := time.Date(2024, 1, 15, 9, 30, 45, 0, time.FixedZone("+0800", 8*3600))
	if !got.Equal(want) {
		t.Fatalf("ParseDT offset = %v, want %v", got, want)
	}
}

func TestParseDTRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "2024", "not-a-date"} {
		if _, err := ParseDT(in); err == nil {
			t.Errorf("ParseDT(%q): expected error", in)
		}
	}
}

func TestRepairName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Doe^Jane", "Doe Jane"},
		{"  Doe^Jane^^ ", "Doe Jane"},
		{"Roe^John^^^", "Roe John"},
		{"PLAIN", "PLAIN"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := RepairName(tc.in); got != tc.want {
			t.Errorf("RepairName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRepairNameDecodesGB18030(t *testing.T) {
	// "张伟" encoded as GB18030 bytes, as a mis-tagged PACS export emits it.
	raw := string([]byte{0xD5, 0xC5, 0xCE, 0xB0})
	if got := RepairName(raw); got != "张伟" {
		t.Fatalf("RepairName(GB18030 bytes) = %q, want %q", got, "张伟")
	}
}

func TestDiscoverFindsDescriptorsInWalkOrder(t *testing.T) {
	root := t.TempDir()
	for _, sub := range []string{"b/scan2", "a/scan1", "c/noscan"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, sub := range []string{"a/scan1", "b/scan2"} {
		if err := os.WriteFile(filepath.Join(root, sub, DescriptorName), []byte{0}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	records, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if filepath.Base(records[0].Dir()) != "scan1" || filepath.Base(records[1].Dir()) != "scan2" {
		t.Fatalf("unexpected walk order: %s, %s", records[0].Dir(), records[1].Dir())
	}
}
