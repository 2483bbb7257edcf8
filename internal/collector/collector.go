// Package collector gathers host inventory (OS, network, hardware) for the
// heartbeat envelope.
package collector

import (
	"net"
	"os"
	"runtime"
	"time"
)

// CollectorError indicates an inventory probe failed. Individual
// sub-probes degrade to absent/omitted fields rather than aborting
// collection; the envelope is still enqueued.
type CollectorError struct {
	Probe string
	Err   error
}

func (e *CollectorError) Error() string {
	return "collector: " + e.Probe + ": " + e.Err.Error()
}

func (e *CollectorError) Unwrap() error { return e.Err }

// Host describes the machine the agent runs on.
type Host struct {
	Hostname      string
	FQDN          string
	OS            string
	OSVersion     string
	OSBuild       string
	Arch          string
	PrimaryIP     string
	IPAddrs       []string
	MACAddrs      []string
	Timezone      string
	BootTime      *time.Time
	UptimeSeconds *int64
}

// Agent describes this agent process.
type Agent struct {
	Version       string
	UptimeSeconds *int64
	LastRestart   *time.Time
}

// Hardware describes physical resources, probed less frequently since
// these values rarely change within a process lifetime.
type Hardware struct {
	CPUModel    string
	CPUCores    *int
	RAMTotalGB  *float64
	DiskTotalGB *float64
	DiskFreeGB  *float64
}

// Identity describes domain-join state.
type Identity struct {
	Domain    string
	Joined    bool
	AADJoined *bool
}

// Snapshot is the full inventory gathered for one heartbeat tick.
type Snapshot struct {
	Host     Host
	Hardware *Hardware
	Identity Identity
}

// Collector gathers Snapshots, caching the comparatively expensive
// hardware sub-probe.
type Collector struct {
	startedAt time.Time
	hw        *HardwareCache
}

// New constructs a Collector. startedAt is the process start time, used
// by Uptime.
func New(startedAt time.Time) *Collector {
	return &Collector{
		startedAt: startedAt,
		hw:        NewHardwareCache(5 * time.Minute),
	}
}

// Collect gathers a fresh Snapshot. Host- and identity-level probes run
// every call; the hardware sub-probe is served from cache when fresh.
func (c *Collector) Collect() Snapshot {
	return Snapshot{
		Host:     collectHost(),
		Hardware: c.hw.Get(),
		Identity: collectIdentity(),
	}
}

// Uptime returns how long the process has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startedAt)
}

func collectHost() Host {
	h := Host{
		Arch: normalizeArch(runtime.GOARCH),
		OS:   runtime.GOOS,
	}

	if name, err := os.Hostname(); err == nil {
		h.Hostname = name
		h.FQDN = name
	}

	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			ip := ipNet.IP.String()
			h.IPAddrs = append(h.IPAddrs, ip)
			if h.PrimaryIP == "" && ipNet.IP.To4() != nil {
				h.PrimaryIP = ip
			}
		}
	}

	if ifaces, err := net.Interfaces(); err == nil {
		for _, iface := range ifaces {
			if iface.HardwareAddr == nil || len(iface.HardwareAddr) == 0 {
				continue
			}
			h.MACAddrs = append(h.MACAddrs, iface.HardwareAddr.String())
		}
	}

	if loc, err := time.LoadLocation("Local"); err == nil {
		h.Timezone = loc.String()
	}

	return h
}

// collectIdentity reports no domain join by default: domain-join
// detection requires platform-specific directory-service queries that are
// out of scope for a portable stdlib probe. identity.joined is always
// reported so the envelope's required field is never missing.
func collectIdentity() Identity {
	return Identity{Joined: false}
}

func normalizeArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "arm":
		return "arm"
	case "386":
		return "i686"
	default:
		return "unknown"
	}
}
