// Package config resolves storyflow configuration.
//
// Values are layered, lowest priority first:
//  1. built-in Defaults
//  2. the global file ~/.config/storyflow/config.yaml (or --config)
//  3. a local .storyflow.yaml found in the working directory or a parent
//  4. STORYFLOW_* environment variables, then the legacy unprefixed names
//     in EnvAliases (JIRA_DOMAIN, JIRA_API_TOKEN, ...)
//  5. command-line flags
//
// Load turns the resolved strings into typed Settings:
//
//	r := config.NewResolver(config.StoryflowResolver(flagConfig))
//	settings, err := config.Load(r.ResolveWithFlags(map[string]string{
//	    config.KeyLogLevel: flagLogLevel,
//	}))
//
// SaveConfig writes single keys back to the global or local file.
package config
