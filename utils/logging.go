package utils

import (
	"log"
	"os"
)

// Global logger variables. The defaults carry no binary prefix so packages
// can log before InitLogging runs (tests exercise them directly).
var (
	InfoLogger  = log.New(os.Stdout, "", log.Ldate|log.Ltime)
	ErrorLogger = log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime)
)

// InitLogging initializes logging with separate stdout/stderr streams.
// Every binary in this repository calls it first thing in main.
func InitLogging(binary string) {
	// Info logs go to stdout so container log collectors keep them apart
	InfoLogger = log.New(os.Stdout, binary+": ", log.Ldate|log.Ltime)

	// Error logs go to stderr
	ErrorLogger = log.New(os.Stderr, binary+" ERROR: ", log.Ldate|log.Ltime)

	// Configure default log package to use stderr for errors
	log.SetOutput(os.Stderr)
	log.SetPrefix(binary + ": ")
	log.SetFlags(log.Ldate | log.Ltime)
}

// LogInfo logs informational messages to stdout
func LogInfo(message string, metadata ...interface{}) {
	args := []interface{}{message}
	args = append(args, metadata...)
	InfoLogger.Println(args...)
}

// LogWarn logs operator-facing warnings to stdout with a visible marker
func LogWarn(message string, metadata ...interface{}) {
	args := []interface{}{"⚠️ ", message}
	args = append(args, metadata...)
	InfoLogger.Println(args...)
}

// LogError logs errors with context to stderr
func LogError(context string, err error, metadata ...interface{}) {
	if err != nil {
		args := []interface{}{context, err}
		args = append(args, metadata...)
		ErrorLogger.Println(args...)
	}
}
