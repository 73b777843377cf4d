// Package command defines the picoretain-cli commands using urfave/cli/v2:
//
//   - root.go: application, global flags, output helpers
//   - layout.go: region layout of a configuration
//   - image.go: inspect, export and history of retained images
//   - simulate.go: an in-process sleep and wake cycle
//
// Every command writes through the app writer so tests can capture it.
package command
