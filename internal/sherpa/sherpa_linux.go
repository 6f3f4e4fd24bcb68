//go:build linux

package sherpa

import (
	"os"
	"strings"

	impl "github.com/k2-fsa/sherpa-onnx-go-linux"
)

type (
	VoiceActivityDetector = impl.VoiceActivityDetector
	VadModelConfig        = impl.VadModelConfig
	SpeechSegment         = impl.SpeechSegment

	OfflineRecognizer       = impl.OfflineRecognizer
	OfflineRecognizerConfig = impl.OfflineRecognizerConfig
	OfflineStream           = impl.OfflineStream

	OfflineTts       = impl.OfflineTts
	OfflineTtsConfig = impl.OfflineTtsConfig
	GeneratedAudio   = impl.GeneratedAudio
)

var (
	NewVoiceActivityDetector    = impl.NewVoiceActivityDetector
	DeleteVoiceActivityDetector = impl.DeleteVoiceActivityDetector

	NewOfflineRecognizer    = impl.NewOfflineRecognizer
	DeleteOfflineRecognizer = impl.DeleteOfflineRecognizer
	NewOfflineStream        = impl.NewOfflineStream
	DeleteOfflineStream     = impl.DeleteOfflineStream

	NewOfflineTts    = impl.NewOfflineTts
	DeleteOfflineTts = impl.DeleteOfflineTts
)

// DefaultProvider is "cuda" when an NVIDIA GPU is visible, otherwise "cpu".
// The prebuilt linux package is CPU-only; cuda needs a source build.
func DefaultProvider() string {
	if hasNvidiaGPU() {
		return "cuda"
	}
	return "cpu"
}

// AvailableProviders lists the execution providers accepted on linux.
func AvailableProviders() []string {
	return []string{"cpu", "cuda"}
}

// hasNvidiaGPU probes for discrete cards and Jetson boards.
func hasNvidiaGPU() bool {
	for _, path := range []string{
		"/usr/bin/nvidia-smi",
		"/usr/local/bin/nvidia-smi",
		"/dev/nvidia0",
		"/dev/nvhost-gpu",
		"/etc/nv_tegra_release",
	} {
		if _, err := os.Stat(path); err == nil {
			return true
		}
	}

	data, err := os.ReadFile("/proc/device-tree/compatible")
	if err != nil {
		return false
	}
	compatible := string(data)
	return strings.Contains(compatible, "nvidia,tegra") || strings.Contains(compatible, "nvidia,jetson")
}
