// Package configs provides the embedded configuration template written by
// `codegrip config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (internal/config NewConfig)
//  2. User config (~/.config/codegrip/config.yaml)
//  3. Project config (.codegrip.yaml)
//  4. Environment variables (CODEGRIP_*)
package configs

import _ "embed"

// ConfigTemplate is the commented template for both the user and the
// project configuration file.
//
//go:embed codegrip.example.yaml
var ConfigTemplate string
