// -----------------------------------------------------------------------
// Crash Protection - last-chance panic capture for the brief process
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// CrashLogDir is where crash reports are written. Set by InstallCrashHandler.
var CrashLogDir = "./logs"

// InstallCrashHandler records the crash directory and makes sure it exists.
// Pair it with a deferred RecoverWithCrashFile at the top of main.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}
}

// WriteCrashFile writes a crash report for panicVal and returns its path, or "" if the
// file could not be written (the report then goes to stderr).
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	now := time.Now()
	crashPath := filepath.Join(CrashLogDir, "crash-"+now.Format("2006-01-02T15-04-05")+".log")

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var b strings.Builder
	fmt.Fprintf(&b, "=== MARKET BRIEF CRASH ===\n")
	fmt.Fprintf(&b, "Time:    %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "Version: %s\n", GetFullVersion())
	fmt.Fprintf(&b, "Runtime: %s %s/%s, %d goroutines, %d MB heap\n\n",
		runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.NumGoroutine(), memStats.Alloc/1024/1024)
	fmt.Fprintf(&b, "--- panic ---\n%v\n\n", panicVal)
	fmt.Fprintf(&b, "--- stack ---\n%s\n", stackTrace)
	fmt.Fprintf(&b, "--- all goroutines ---\n%s\n", allGoroutineStacks())

	if err := os.WriteFile(crashPath, []byte(b.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n%s", err, b.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\nPanic: %v\n", crashPath, panicVal)
	return crashPath
}

// allGoroutineStacks grows the buffer until every stack fits, up to 16MB
func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 16*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// RecoverWithCrashFile writes a crash file and exits on panic.
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		buf := make([]byte, 8192)
		n := runtime.Stack(buf, false)
		WriteCrashFile(r, string(buf[:n]))
		os.Exit(2)
	}
}
