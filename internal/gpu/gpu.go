// Package gpu collects per-device telemetry from nvidia-smi on fleet hosts.
package gpu

import (
	"fmt"
	"strconv"
	"strings"
)

// Device is the telemetry snapshot for one GPU.
type Device struct {
	Index       int     `json:"index"`
	Name        string  `json:"name"`
	Temperature int     `json:"temperature"`
	Utilization float64 `json:"utilization"`
	MemoryUsed  int64   `json:"memory_used_mib"`
	MemoryTotal int64   `json:"memory_total_mib"`
}

// MemoryPercent returns used memory as a percentage of total.
func (d *Device) MemoryPercent() float64 {
	if d.MemoryTotal == 0 {
		return 0
	}
	return float64(d.MemoryUsed) / float64(d.MemoryTotal) * 100
}

// Query is the nvidia-smi invocation the collector runs remotely.
// One CSV line per device, no header, no units.
const Query = "nvidia-smi --query-gpu=index,name,temperature.gpu,utilization.gpu,memory.used,memory.total --format=csv,noheader,nounits"

// ParseNvidiaSMI parses multi-device CSV output from the Query command.
//
// Returns nil, nil when the host has no usable GPU: empty output, or the
// error text nvidia-smi (or the shell) prints when the driver or binary is
// missing.
func ParseNvidiaSMI(output string) ([]Device, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, nil
	}

	lower := strings.ToLower(output)
	if strings.Contains(lower, "no devices") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "failed") ||
		strings.Contains(lower, "error") {
		return nil, nil
	}

	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		dev, err := parseLine(line)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// parseLine parses one CSV row: index, name, temperature.gpu,
// utilization.gpu, memory.used, memory.total.
// Example: "0, NVIDIA A100-SXM4-80GB, 41, 87, 61852, 81920"
func parseLine(line string) (Device, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 6 {
		return Device{}, fmt.Errorf("nvidia-smi row has insufficient fields: expected 6, got %d", len(fields))
	}

	var dev Device

	idxStr := strings.TrimSpace(fields[0])
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return Device{}, fmt.Errorf("failed to parse GPU index '%s': %w", idxStr, err)
	}
	dev.Index = idx

	dev.Name = strings.TrimSpace(fields[1])

	tempStr := strings.TrimSpace(fields[2])
	if tempStr != "" && tempStr != "[N/A]" {
		temp, err := strconv.Atoi(tempStr)
		if err != nil {
			return Device{}, fmt.Errorf("failed to parse GPU temperature '%s': %w", tempStr, err)
		}
		dev.Temperature = temp
	}

	utilStr := strings.TrimSpace(fields[3])
	if utilStr != "" && utilStr != "[N/A]" {
		util, err := strconv.ParseFloat(utilStr, 64)
		if err != nil {
			return Device{}, fmt.Errorf("failed to parse GPU utilization '%s': %w", utilStr, err)
		}
		dev.Utilization = util
	}

	memUsedStr := strings.TrimSpace(fields[4])
	if memUsedStr != "" && memUsedStr != "[N/A]" {
		used, err := strconv.ParseInt(memUsedStr, 10, 64)
		if err != nil {
			return Device{}, fmt.Errorf("failed to parse GPU memory used '%s': %w", memUsedStr, err)
		}
		dev.MemoryUsed = used
	}

	memTotalStr := strings.TrimSpace(fields[5])
	if memTotalStr != "" && memTotalStr != "[N/A]" {
		total, err := strconv.ParseInt(memTotalStr, 10, 64)
		if err != nil {
			return Device{}, fmt.Errorf("failed to parse GPU memory total '%s': %w", memTotalStr, err)
		}
		dev.MemoryTotal = total
	}

	return dev, nil
}
