package system

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// LogFileName is the file created in the log directory
const LogFileName = "budgetbot.log"

// EnableLogFile sends log output to stdout and to a file in dir. The
// returned file should be closed on exit.
func EnableLogFile(dir string) (*os.File, error) {
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return nil, fmt.Errorf("Error creating log dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, LogFileName),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("Error opening log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, f))

	return f, nil
}
