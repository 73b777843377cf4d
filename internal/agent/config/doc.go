// Package config provides the picoretain-agent configuration.
//
//   - spec.go: AgentConfig struct definition
//   - default.go: default values
//   - verify.go: validation and the region layout derived from it
//   - load.go: loading through internal/infra/confloader
//
// A minimal file:
//
//	retention:
//	  backend: badger
//	  data_dir: /var/lib/picoretain
//	  regions:
//	    pending_queries: 1024
//	restore:
//	  on_unresolved: drop
package config
