package resource

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// SystemSampler returns a Sampler that reads CPU and memory usage from
// the proc filesystem. connections reports the current count of
// tracked connections (pass nil for zero); callers typically feed it
// from their HTTP server's ConnState hook.
//
// On platforms without /proc the sampler returns an error and the
// monitor fails open to healthy.
func SystemSampler(connections func() int) Sampler {
	var prev cpuSample
	return func(ctx context.Context) (Snapshot, error) {
		cpu, err := readCPUSample()
		if err != nil {
			return Snapshot{}, err
		}
		cpuPct := prev.usageSince(cpu)
		prev = cpu

		memPct, err := readMemoryPct()
		if err != nil {
			return Snapshot{}, err
		}

		conns := 0
		if connections != nil {
			conns = connections()
		}

		return Snapshot{
			CPUUsagePct:       cpuPct,
			MemoryUsagePct:    memPct,
			ActiveConnections: conns,
			Timestamp:         time.Now().UTC(),
		}, nil
	}
}

type cpuSample struct {
	busy, total uint64
}

// usageSince derives a percentage from two /proc/stat samples. The
// first call has no baseline and reports zero.
func (p cpuSample) usageSince(cur cpuSample) float64 {
	if p.total == 0 || cur.total <= p.total {
		return 0
	}
	busy := cur.busy - p.busy
	total := cur.total - p.total
	return 100 * float64(busy) / float64(total)
}

func readCPUSample() (cpuSample, error) {
	data, err := os.ReadFile("/proc/stat")
	if err != nil {
		return cpuSample{}, err
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return parseCPULine(line)
}

func parseCPULine(line string) (cpuSample, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 || fields[0] != "cpu" {
		return cpuSample{}, fmt.Errorf("resource: malformed cpu line %q", line)
	}
	var s cpuSample
	for i, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return cpuSample{}, fmt.Errorf("resource: cpu field %q: %w", f, err)
		}
		s.total += v
		// Fields 4 and 5 are idle and iowait.
		if i != 3 && i != 4 {
			s.busy += v
		}
	}
	return s, nil
}

func readMemoryPct() (float64, error) {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		// Fall back to Go heap pressure when /proc is unavailable.
		if runtime.GOOS != "linux" {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			if ms.Sys == 0 {
				return 0, nil
			}
			return 100 * float64(ms.HeapInuse) / float64(ms.Sys), nil
		}
		return 0, err
	}
	return parseMemInfo(string(data))
}

func parseMemInfo(data string) (float64, error) {
	var total, available uint64
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			total = v
		case "MemAvailable:":
			available = v
		}
	}
	if total == 0 {
		return 0, fmt.Errorf("resource: meminfo missing MemTotal")
	}
	return 100 * float64(total-available) / float64(total), nil
}
