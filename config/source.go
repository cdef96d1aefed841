package config

// Source indicates where a configuration value came from.
type Source string

// Configuration sources, lowest priority first.
const (
	SourceDefault Source = "default"
	SourceGlobal  Source = "global" // ~/.config/storyflow/config.yaml or --config
	SourceLocal   Source = "local"  // .storyflow.yaml
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)
