// Package retained provides the memory area that survives power-down.
//
// On a device the area is a fixed block of retention RAM and HeapMemory is
// enough: Sync has nothing to flush. On a development host BadgerMemory
// emulates the retention domain by persisting the image in a Badger store,
// keeping a short history of previous images for inspection.
package retained
