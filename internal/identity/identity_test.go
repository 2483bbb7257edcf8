package identity

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

var hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestResolveEnvOverrideWins(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SENSOR_ID_OVERRIDE", "custom-sensor-id")

	r := Resolve(dir, nil)
	if r.SensorID != "custom-sensor-id" || r.Source != SourceEnv {
		t.Fatalf("unexpected resolution: %+v", r)
	}
}

func TestResolveReadsExistingDeviceIDFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SENSOR_ID_OVERRIDE", "")
	if err := os.WriteFile(filepath.Join(dir, "device_id.txt"), []byte("  abc123\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	r := Resolve(dir, nil)
	if r.SensorID != "abc123" || r.Source != SourceDeviceIDFile {
		t.Fatalf("unexpected resolution: %+v", r)
	}
}

func TestResolveGeneratesAndPersistsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SENSOR_ID_OVERRIDE", "")

	r := Resolve(dir, nil)
	if r.Source != SourceGeneratedNew {
		t.Fatalf("expected generated_new, got %+v", r)
	}
	if !hex32.MatchString(r.SensorID) {
		t.Fatalf("sensor id not 32-hex: %q", r.SensorID)
	}

	contents, err := os.ReadFile(filepath.Join(dir, "device_id.txt"))
	if err != nil {
		t.Fatalf("device_id.txt not written: %v", err)
	}
	if string(contents) != r.SensorID {
		t.Fatalf("persisted id mismatch: %q != %q", contents, r.SensorID)
	}
}

func TestResolveIsStableAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SENSOR_ID_OVERRIDE", "")

	first := Resolve(dir, nil)
	second := Resolve(dir, nil)
	if first.SensorID != second.SensorID {
		t.Fatalf("sensor id not stable: %q != %q", first.SensorID, second.SensorID)
	}
	if second.Source != SourceDeviceIDFile {
		t.Fatalf("expected second resolution to read the persisted file, got %+v", second)
	}
}

func TestResolveFallsBackToMemoryOnlyWhenUnwritable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SENSOR_ID_OVERRIDE", "")
	// Make the directory read-only so the generated id cannot be persisted.
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatalf("Chmod: %v", err)
	}
	defer os.Chmod(dir, 0o700)

	r := Resolve(dir, nil)
	if r.Source != SourceGeneratedMemoryOnly {
		t.Fatalf("expected generated_memory_only, got %+v", r)
	}
	if !hex32.MatchString(r.SensorID) {
		t.Fatalf("sensor id not 32-hex: %q", r.SensorID)
	}
}
