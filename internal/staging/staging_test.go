package staging

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestStagingManager(t *testing.T) {
	tmpDir := t.TempDir()
	mgr := NewManager(tmpDir)

	if mgr.FinalDir() != tmpDir {
		t.Errorf("expected FinalDir %s, got %s", tmpDir, mgr.FinalDir())
	}

	run := "2026-10-19_1500"
	expectedStaging := filepath.Join(tmpDir, ".staging", run)
	if mgr.StagingDir(run) != expectedStaging {
		t.Errorf("expected StagingDir %s, got %s", expectedStaging, mgr.StagingDir(run))
	}

	if err := mgr.PrepareStaging(run); err != nil {
		t.Fatalf("PrepareStaging failed: %v", err)
	}
	if _, err := os.Stat(expectedStaging); os.IsNotExist(err) {
		t.Error("staging directory not created")
	}

	viewPath := filepath.Join(mgr.StagingDir(run), "SPY", "view.json")
	size, err := mgr.WriteJSON(viewPath, map[string]string{"ticker": "SPY"})
	if err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if size == 0 {
		t.Error("expected a non-zero size")
	}
	if _, err := os.Stat(viewPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}

	pngPath := filepath.Join(mgr.StagingDir(run), "SPY", "price.png")
	if _, err := mgr.WriteBytes(pngPath, []byte("\x89PNG")); err != nil {
		t.Fatalf("WriteBytes failed: %v", err)
	}

	if err := mgr.CommitStaging(run); err != nil {
		t.Fatalf("CommitStaging failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(tmpDir, run, "SPY", "view.json"))
	if err != nil {
		t.Fatalf("committed file missing: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil || got["ticker"] != "SPY" {
		t.Errorf("unexpected committed content %s (%v)", raw, err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, run, "SPY", "price.png")); err != nil {
		t.Errorf("committed png missing: %v", err)
	}

	if err := mgr.CleanupStaging(run); err != nil {
		t.Fatalf("CleanupStaging failed: %v", err)
	}
	if _, err := os.Stat(expectedStaging); !os.IsNotExist(err) {
		t.Error("staging directory not cleaned up")
	}
}

func TestWriteFile_FailureLeavesNothing(t *testing.T) {
	mgr := NewManager(t.TempDir())
	dest := filepath.Join(mgr.StagingDir("run"), "QQQ", "view.json")

	_, err := mgr.WriteFile(dest, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("encoder exploded")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, p := range []string{dest, dest + ".tmp"} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should not exist after a failed write", p)
		}
	}
}
