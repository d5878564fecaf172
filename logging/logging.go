package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

var (
	debugLogger *log.Logger
	stdLogger   = log.New(os.Stderr, "", log.LstdFlags)
	logFile     *os.File
	mu          sync.Mutex
	isSetup     bool
)

// SetupLogger initializes the debug logger with the specified log file.
// Debug output only goes to the file; info, warnings and errors go to both.
func SetupLogger(logFilePath string) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	var err error
	logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	debugLogger = log.New(logFile, "", log.LstdFlags)
	debugLogger.Printf("--- simple-dedupe debug log started at %s ---\n", time.Now().Format(time.RFC3339))

	isSetup = true
	return nil
}

// SetOutput redirects the info/warning/error stream (stderr by default)
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	stdLogger.SetOutput(w)
}

// CloseLogger closes the log file
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		debugLogger.Printf("--- simple-dedupe debug log closed at %s ---\n", time.Now().Format(time.RFC3339))
		logFile.Close()
		logFile = nil
		debugLogger = nil
		isSetup = false
	}
}

// DebugEnabled reports whether a debug log file is open
func DebugEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return debugLogger != nil
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	write("INFO: ", format, args...)
}

// DebugLog logs a message if debug mode is enabled
func DebugLog(format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if debugLogger != nil {
		debugLogger.Printf(format, args...)
	}
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	write("ERROR: ", format, args...)
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	write("WARNING: ", format, args...)
}

// LogImageExtracted logs the outcome of feature extraction for one image
func LogImageExtracted(id, path string, keypoints int, err error) {
	mu.Lock()
	defer mu.Unlock()

	if debugLogger == nil {
		return
	}
	if err != nil {
		debugLogger.Printf("FAILED: %s (%s) - Error: %v", id, path, err)
		return
	}
	debugLogger.Printf("EXTRACTED: %s (%s) - %d keypoints", id, path, keypoints)
}

func write(level, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	stdLogger.Printf(level+format, args...)
	if debugLogger != nil {
		debugLogger.Printf(level+format, args...)
	}
}
