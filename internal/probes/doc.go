// Package probes provides system counters backed by gopsutil.
//
// Every probe reads its data through a small source interface so tests can
// substitute fakes. RegisterAll wires the enabled probes into the scalar and
// vector catalogs under the "Internal" category:
//
//	Internal/CPU/_Total                            scalar, percent busy
//	Internal/CPU/PerCore                           vector, percent busy per core
//	Internal/ComputerInfo/AvailablePhysicalMemoryInMiB
//	Internal/ComputerInfo/AvailableVirtualMemoryInMiB
//	Internal/ComputerInfo/TotalPhysicalMemoryInMiB
//	Internal/ComputerInfo/TotalVirtualMemoryInMiB
//	Internal/ComputerInfo/% PhysicalMemoryUsed
//	Internal/ComputerInfo/% VirtualMemoryUsed
//	Internal/Default Network/Bytes Received/sec
//	Internal/Default Network/Bytes Sent/sec
//	Internal/Default Network/Bytes Total/sec
//	Internal/Default Network/Current Bandwidth     bits per second
//	Internal/Default Network/% Network Total Usage
//	Internal/System Disk/% Usage
//
// Rate and CPU counters are computed from the delta between two calls of the
// same provider, so the first call of each returns 0.
package probes
