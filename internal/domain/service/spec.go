// Package service defines the static registration and mutable runtime
// state of a supervised child process (LLM runtime, TTS, STT, dashboard).
package service

// Spec is the static registration for a supervised service, typically
// loaded once from the daemon's YAML configuration at startup.
type Spec struct {
	ID          string            `json:"id" yaml:"id"`
	DisplayName string            `json:"display_name" yaml:"display_name"`
	Kind        string            `json:"kind" yaml:"kind"`
	Command     []string          `json:"command_vector" yaml:"command"`
	WorkingDir  string            `json:"working_dir" yaml:"working_dir"`
	Port        int               `json:"port" yaml:"port"`
	HealthURL   string            `json:"health_url" yaml:"health_url"`
	AutoRestart bool              `json:"auto_restart" yaml:"auto_restart"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
}
