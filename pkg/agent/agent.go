// Package agent defines the voice assistant persona: which model to run,
// which prebuilt voice to speak with, and the system instruction that
// shapes its behavior.
package agent

const (
	DefaultModel = "gemini-live-2.5-flash-native-audio"
	DefaultVoice = "Puck"
)

// Config describes the assistant persona for one gateway deployment.
type Config struct {
	Model        string
	Voice        string
	Instruction  string
	EnableSearch bool
}

// Default returns the NaviGo travel assistant persona.
func Default() Config {
	return Config{
		Model:        DefaultModel,
		Voice:        DefaultVoice,
		Instruction:  SystemInstruction,
		EnableSearch: true,
	}
}
