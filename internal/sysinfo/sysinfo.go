// Package sysinfo collects host metadata attached to posted snapshots.
package sysinfo

import (
	"net"
	"os"
	"runtime"

	"github.com/leapstack-labs/metron/pkg/metric"
)

// indeterminate is stored when a value cannot be resolved; collection is
// best-effort and never fails.
const indeterminate = "<<indeterminate>>"

// Collect returns a standard set of metadata describing the host system.
func Collect() metric.Metadata {
	md := metric.NewMetadata()
	md.SetString("system", runtime.GOOS)
	md.SetString("machine", runtime.GOARCH)
	md.SetInt("num_cores", int64(runtime.NumCPU()))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = indeterminate
	}
	md.SetString("hostname", hostname)
	md.SetString("ip_address", ipAddress(hostname))
	return md
}

// ipAddress resolves the host's first non-loopback address.
func ipAddress(hostname string) string {
	if addrs, err := net.LookupIP(hostname); err == nil {
		for _, addr := range addrs {
			if !addr.IsLoopback() {
				return addr.String()
			}
		}
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return indeterminate
	}
	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() && ipNet.IP.To4() != nil {
			return ipNet.IP.String()
		}
	}
	return indeterminate
}
