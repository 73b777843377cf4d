// Package confloader loads layered configuration with koanf.
//
// Priority, highest first:
//
//  1. Environment variables (PICORETAIN_ prefix, "__" between levels)
//  2. The YAML configuration file
//  3. Defaults
//
// Watcher reports writes to the configuration file so long-running
// processes can pick up changes such as the log level.
package confloader
