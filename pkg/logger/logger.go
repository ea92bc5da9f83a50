package logger

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type RunLog struct {
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Output     string     `json:"output"`
	Activities int        `json:"activities"`
	Exported   int        `json:"exported"`
	Skipped    []int64    `json:"skipped,omitempty"`
	Rows       int        `json:"rows"`
	Requests   int        `json:"requests"`
	Error      string     `json:"error,omitempty"`
}

// RunResult is what an export run reports when it ends
type RunResult struct {
	Activities int
	Exported   int
	Skipped    []int64
	Rows       int
	Requests   int
	Err        error
}

type Logger struct {
	logDir string
}

func NewLogger() *Logger {
	logDir := os.Getenv("LOG_DIR")
	if logDir == "" {
		logDir = "./logs"
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.Printf("Failed to create log directory %s: %v", logDir, err)
	}

	return &Logger{
		logDir: logDir,
	}
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.New().String()
}

func (l *Logger) LogRunStart(runID string, output string) error {
	runLog := RunLog{
		RunID:     runID,
		StartedAt: time.Now(),
		Output:    output,
	}

	return l.writeRunLog(runLog)
}

func (l *Logger) LogRunEnd(runID string, result RunResult) error {
	now := time.Now()
	runLog, err := l.readRunLog(runID)
	if err != nil {
		// If we can't read the existing log, create a new one
		runLog = RunLog{
			RunID:     runID,
			StartedAt: now,
		}
	}

	runLog.FinishedAt = &now
	runLog.Activities = result.Activities
	runLog.Exported = result.Exported
	runLog.Skipped = result.Skipped
	runLog.Rows = result.Rows
	runLog.Requests = result.Requests
	if result.Err != nil {
		runLog.Error = result.Err.Error()
	}

	return l.writeRunLog(runLog)
}

func (l *Logger) readRunLog(runID string) (RunLog, error) {
	var runLog RunLog

	filePath := filepath.Join(l.logDir, fmt.Sprintf("%s.json", runID))
	data, err := os.ReadFile(filePath)
	if err != nil {
		return runLog, err
	}

	err = json.Unmarshal(data, &runLog)
	return runLog, err
}

func (l *Logger) writeRunLog(runLog RunLog) error {
	filePath := filepath.Join(l.logDir, fmt.Sprintf("%s.json", runLog.RunID))

	data, err := json.MarshalIndent(runLog, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %v", err)
	}

	err = os.WriteFile(filePath, data, 0644)
	if err != nil {
		return fmt.Errorf("failed to write run log to %s: %v", filePath, err)
	}

	log.Printf("Run log written: %s", filePath)
	return nil
}
