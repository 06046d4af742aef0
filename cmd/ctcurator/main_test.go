package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T, base string) string {
	t.Helper()
	configPath := filepath.Join(base, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(base, "data") + `"`,
		`output_dir = "` + filepath.Join(base, "output") + `"`,
		`log_dir = "` + filepath.Join(base, "logs") + `"`,
	}, "\n") + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootHelpListsStages(t *testing.T) {
	out, err := runCLI(t)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	for _, name := range []string{"curate", "surfaces", "verify", "status", "config"} {
		if !strings.Contains(out, name) {
			t.Fatalf("help output missing %q:\n%s", name, out)
		}
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config not written: %v", err)
	}

	if _, err = runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("second init without --overwrite succeeded")
	}
	if out, err = runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %v\n%s", err, out)
	}

	if out, err = runCLI(t, "config", "validate", "--path", target); err != nil {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "is valid") {
		t.Fatalf("validate output: %s", out)
	}
}

func TestStatusWithEmptyJournal(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)
	for _, dir := range []string{"data", "output", "logs"} {
		if err := os.MkdirAll(filepath.Join(base, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	out, err := runCLI(t, "--config", configPath, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No recorded runs.") {
		t.Fatalf("status output: %s", out)
	}
}

func TestVerifyRequiresIndex(t *testing.T) {
	base := t.TempDir()
	configPath := writeTestConfig(t, base)
	if _, err := runCLI(t, "--config", configPath, "verify"); err == nil {
		t.Fatal("verify without an index succeeded")
	}
}
