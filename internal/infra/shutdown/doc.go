// Package shutdown coordinates process exit for picoretain-agent.
//
// Two kinds of exit are distinguished:
//
//   - Terminate (SIGINT, SIGTERM): shutdown hooks run, nothing is retained.
//   - Sleep (SIGUSR1): the sleep hook runs first; only when it succeeds do
//     the shutdown hooks run. A failed sleep leaves the process running.
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnSleep(func(ctx context.Context) error { ... })
//	h.OnShutdown(func(ctx context.Context) error { ... })
//	reason, err := h.Wait()
package shutdown
