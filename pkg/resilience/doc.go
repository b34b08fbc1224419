// Package resilience contains fault-isolation components.
//
// The bulkhead subpackage partitions capacity into independent execution
// pools so that saturation of one caller population cannot exhaust the
// capacity available to others.
package resilience
