// Package shutdown coordinates graceful process termination.
//
// A Handler waits for SIGINT or SIGTERM and then runs the registered hooks in
// reverse order of registration, so the component started last stops first.
// All hooks share a single deadline.
package shutdown
