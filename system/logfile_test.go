package system

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnableLogFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	f, err := EnableLogFile(dir)
	if err != nil {
		t.Fatal("Error enabling log file: ", err)
	}
	defer func() {
		log.SetOutput(os.Stderr)
		f.Close()
	}()

	log.Println("hello log file")

	b, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatal("Error reading log file: ", err)
	}

	if !strings.Contains(string(b), "hello log file") {
		t.Error("log line not found in file: ", string(b))
	}
}
