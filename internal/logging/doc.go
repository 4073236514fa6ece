// Package logging configures codegrip's structured logs. Without --debug the
// CLI logs warnings to stderr only; with it, JSON records go to a size-rotated
// file under ~/.codegrip/logs/ as well.
package logging
