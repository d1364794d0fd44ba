// Package hook provides the data structures shared by the local runner and the options that
// observe it. A run is a small graph of phases: start, split, one main per chunk, join, end.
// Stages without a split phase run start, main, end.
package hook
