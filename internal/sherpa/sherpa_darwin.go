//go:build darwin

package sherpa

import impl "github.com/k2-fsa/sherpa-onnx-go-macos"

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

// DefaultProvider uses CoreML, which can schedule on the Neural Engine.
func DefaultProvider() string {
	return "coreml"
}

// AvailableProviders lists the execution providers accepted on macOS.
func AvailableProviders() []string {
	return []string{"cpu", "coreml"}
}
