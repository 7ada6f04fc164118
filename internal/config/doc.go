// Package config provides configuration loading and validation for the vox
// capture service. It handles YAML-based configuration with per-section
// validation and defaults shared by the recorder and relay binaries.
package config
