package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

var crashDir = "./logs"

// InstallCrashHandler sets the directory crash reports are written to
func InstallCrashHandler(dir string) {
	if dir != "" {
		crashDir = dir
	}
	if err := os.MkdirAll(crashDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: cannot create %s: %v\n", crashDir, err)
	}
}

// WriteCrashReport writes a report for a fatal panic and returns its path.
// The report goes to stderr when the file cannot be written.
func WriteCrashReport(panicVal interface{}) string {
	now := time.Now()
	path := filepath.Join(crashDir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: cannot create %s: %v\n", path, err)
		writeCrashReport(os.Stderr, now, panicVal)
		return ""
	}
	defer file.Close()

	writeCrashReport(file, now, panicVal)
	file.Sync()

	fmt.Fprintf(os.Stderr, "\nFATAL: pagerender crashed, report saved to %s\nPanic: %v\n", path, panicVal)
	return path
}

func writeCrashReport(w io.Writer, at time.Time, panicVal interface{}) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	fmt.Fprintf(w, "=== PAGERENDER CRASH REPORT ===\n")
	fmt.Fprintf(w, "Time: %s\nVersion: %s\n\n", at.Format(time.RFC3339), GetFullVersion())
	fmt.Fprintf(w, "=== PANIC ===\n%v\n\n", panicVal)
	fmt.Fprintf(w, "=== GOROUTINES (%d) ===\n%s\n", runtime.NumGoroutine(), allStacks())
	fmt.Fprintf(w, "=== RUNTIME ===\nGOOS/GOARCH: %s/%s\nHeapAlloc: %d MB\nNumGC: %d\n",
		runtime.GOOS, runtime.GOARCH, mem.HeapAlloc/1024/1024, mem.NumGC)
}

// allStacks dumps every goroutine, growing the buffer up to 64MB
func allStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= 64*1024*1024 {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}

// RecoverWithCrashReport is deferred at the top of main
func RecoverWithCrashReport() {
	if r := recover(); r != nil {
		WriteCrashReport(r)
		os.Exit(1)
	}
}
