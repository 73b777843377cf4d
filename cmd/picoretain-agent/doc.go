// Package main provides the entry point for picoretain-agent.
//
// picoretain-agent hosts one client session over retained memory. On start
// it restores the session retained by the previous run, or applies the
// bootstrap file when nothing usable was retained. It then waits:
//
//   - SIGUSR1 quiesces the session, snapshots it and exits. A failed
//     snapshot is logged and the agent keeps running.
//   - SIGINT or SIGTERM exits without snapshotting.
//
// With the badger backend the retained area outlives the process, so the
// next start restores what the last SIGUSR1 retained.
package main
