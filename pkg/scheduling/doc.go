// Package scheduling contains task execution components.
//
// The priorityqueue subpackage provides a bounded, priority-ordered
// executor with configurable overflow policies and starvation
// prevention for low-priority work.
package scheduling
