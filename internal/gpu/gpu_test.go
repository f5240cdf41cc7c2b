package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNvidiaSMI_SingleDevice(t *testing.T) {
	out := "0, NVIDIA GeForce RTX 3080, 65, 45, 2048, 10240"

	devices, err := ParseNvidiaSMI(out)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	d := devices[0]
	assert.Equal(t, 0, d.Index)
	assert.Equal(t, "NVIDIA GeForce RTX 3080", d.Name)
	assert.Equal(t, 65, d.Temperature)
	assert.Equal(t, 45.0, d.Utilization)
	assert.Equal(t, int64(2048), d.MemoryUsed)
	assert.Equal(t, int64(10240), d.MemoryTotal)
}

func TestParseNvidiaSMI_MultiDevice(t *testing.T) {
	out := `0, NVIDIA A100-SXM4-80GB, 41, 87, 61852, 81920
1, NVIDIA A100-SXM4-80GB, 38, 0, 3, 81920
2, NVIDIA A100-SXM4-80GB, 44, 100, 80911, 81920`

	devices, err := ParseNvidiaSMI(out)
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, 1, devices[1].Index)
	assert.Equal(t, 0.0, devices[1].Utilization)
	assert.Equal(t, 100.0, devices[2].Utilization)
	assert.InDelta(t, 98.77, devices[2].MemoryPercent(), 0.01)
}

func TestParseNvidiaSMI_NoGPU(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"empty", ""},
		{"whitespace", "   \n  "},
		{"missing binary", "bash: nvidia-smi: command not found"},
		{"no devices", "No devices were found"},
		{"driver failure", "NVIDIA-SMI has failed because it couldn't communicate with the NVIDIA driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := ParseNvidiaSMI(tt.output)
			assert.NoError(t, err)
			assert.Nil(t, devices)
		})
	}
}

func TestParseNvidiaSMI_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		output string
	}{
		{"too few fields", "0, NVIDIA A100, 41, 87"},
		{"bad index", "x, NVIDIA A100, 41, 87, 100, 81920"},
		{"bad temperature", "0, NVIDIA A100, hot, 87, 100, 81920"},
		{"bad memory", "0, NVIDIA A100, 41, 87, lots, 81920"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNvidiaSMI(tt.output)
			assert.Error(t, err)
		})
	}
}

func TestParseNvidiaSMI_NAFields(t *testing.T) {
	out := "0, NVIDIA A100, [N/A], [N/A], 100, 81920"

	devices, err := ParseNvidiaSMI(out)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, 0, devices[0].Temperature)
	assert.Equal(t, 0.0, devices[0].Utilization)
	assert.Equal(t, int64(100), devices[0].MemoryUsed)
}

func TestMemoryPercent_ZeroTotal(t *testing.T) {
	d := Device{MemoryUsed: 100, MemoryTotal: 0}
	assert.Equal(t, 0.0, d.MemoryPercent())
}
