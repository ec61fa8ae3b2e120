// Package confloader provides configuration loading mechanism.
//
// Configuration is read with koanf from a YAML file, MEMKV_ environment
// variables and flag overrides. Priority (highest to lowest):
//
//  1. Command-line flags
//  2. Environment variables
//  3. Configuration file
//  4. Default values
//
// Watcher reports writes to a configuration file through fsnotify so the
// server can re-apply settings that are safe to change at runtime.
package confloader
