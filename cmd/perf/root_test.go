//go:build linux

package perf

import (
	"github.com/ValentinKolb/netsock/lib/common"
	"github.com/ValentinKolb/netsock/lib/netsocket"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun(t *testing.T) {
	lib := netsocket.NewLibrary()
	if err := lib.Init(); err != nil {
		t.Fatalf("Failed to init library: %v", err)
	}
	defer lib.Shutdown()

	conf := common.ClientConfig{
		Address: "127.0.0.1",
		Port:    "0",
		Count:   100,
		Size:    128,
		Socket:  common.DefaultSocketConf(),
	}

	result, err := Run(lib, conf)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Messages != 100 {
		t.Errorf("Expected 100 messages, got %d", result.Messages)
	}
	if want := int64(100 * (128 + 4)); result.Bytes != want {
		t.Errorf("Expected %d bytes, got %d", want, result.Bytes)
	}
	if result.Elapsed <= 0 {
		t.Errorf("Expected positive elapsed time, got %s", result.Elapsed)
	}

	path := filepath.Join(t.TempDir(), "result.csv")
	if err := writeResultToCSV(path, result, &conf); err != nil {
		t.Fatalf("Failed to write CSV: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "100,128,") {
		t.Errorf("Unexpected CSV content:\n%s", content)
	}
}
