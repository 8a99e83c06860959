package embedding

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// DetectHardware samples the current process's hardware environment. It is
// best-effort: fields it cannot determine on the current platform are left
// zero-valued rather than erroring, matching spec §3's "re-detected on
// demand" note — a failed probe should not abort initialize().
func DetectHardware() HardwareCapabilities {
	caps := HardwareCapabilities{
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
		CPUCores: runtime.NumCPU(),
	}

	if runtime.GOOS == "linux" {
		total, free := readProcMeminfo()
		caps.TotalRAM = total
		caps.FreeRAM = free
	}

	if runtime.GOARCH == "arm64" && runtime.GOOS == "darwin" {
		caps.GPU = &GPU{Vendor: "apple", Name: "Apple Silicon GPU (MPS)"}
	}

	return caps
}

// readProcMeminfo parses /proc/meminfo's MemTotal/MemAvailable lines into
// byte counts. Returns zero values if the file is unreadable (containers
// without /proc, non-Linux callers who reach this by mistake).
func readProcMeminfo() (totalBytes, freeBytes int64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalBytes = parseMeminfoKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			freeBytes = parseMeminfoKB(line)
		}
	}
	return totalBytes, freeBytes
}

func parseMeminfoKB(line string) int64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	kb, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return kb * 1024
}
