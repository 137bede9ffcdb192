package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"fridamgr/internal/paths"
)

// New creates a logger that writes to a timestamped file inside the global
// logs directory. The command name becomes part of the filename so runs of
// different commands stay distinguishable. The returned closer should be
// closed when logging is no longer needed.
func New(command string) (*log.Logger, io.Closer, error) {
	dir, err := paths.GlobalLogsDir()
	if err != nil {
		return nil, nil, err
	}

	filename := time.Now().Format("20060102-150405") + "-" + command + ".log"
	filePath := filepath.Join(dir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	logger := log.New(file, "", log.LstdFlags|log.Lmicroseconds)
	return logger, file, nil
}
