package scheduler

import (
	"time"

	"github.com/trapd-io/trapd-agent/internal/collector"
)

type hostEnvelope struct {
	Hostname      string   `json:"hostname"`
	FQDN          string   `json:"fqdn"`
	OS            string   `json:"os"`
	OSVersion     string   `json:"os_version"`
	OSBuild       string   `json:"os_build,omitempty"`
	Arch          string   `json:"arch"`
	PrimaryIP     string   `json:"primary_ip"`
	IPAddrs       []string `json:"ip_addrs"`
	MACAddrs      []string `json:"mac_addrs"`
	Timezone      string   `json:"timezone,omitempty"`
	BootTime      string   `json:"boot_time,omitempty"`
	UptimeSeconds *int64   `json:"uptime_seconds,omitempty"`
}

type agentEnvelope struct {
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds,omitempty"`
	LastRestart   string `json:"last_restart,omitempty"`
}

type hardwareEnvelope struct {
	CPUModel    string   `json:"cpu_model,omitempty"`
	CPUCores    *int     `json:"cpu_cores,omitempty"`
	RAMTotalGB  *float64 `json:"ram_total_gb,omitempty"`
	DiskTotalGB *float64 `json:"disk_total_gb,omitempty"`
	DiskFreeGB  *float64 `json:"disk_free_gb,omitempty"`
}

type identityEnvelope struct {
	Domain    string `json:"domain,omitempty"`
	Joined    bool   `json:"joined"`
	AADJoined *bool  `json:"aad_joined,omitempty"`
}

// heartbeatEnvelope is the JSON payload enqueued for every heartbeat tick.
type heartbeatEnvelope struct {
	SensorID  string            `json:"sensor_id"`
	ProjectID string            `json:"project_id"`
	TS        string            `json:"ts"`
	Kind      string            `json:"kind"`
	Message   string            `json:"message"`
	Host      hostEnvelope      `json:"host"`
	Agent     agentEnvelope     `json:"agent"`
	Hardware  *hardwareEnvelope `json:"hardware,omitempty"`
	Identity  identityEnvelope  `json:"identity"`
}

func (s *Scheduler) buildEnvelope(snap collector.Snapshot) heartbeatEnvelope {
	var bootTime string
	if snap.Host.BootTime != nil {
		bootTime = snap.Host.BootTime.UTC().Format(time.RFC3339)
	}

	env := heartbeatEnvelope{
		SensorID:  s.SensorID,
		ProjectID: s.ProjectID,
		TS:        time.Now().UTC().Format(time.RFC3339),
		Kind:      "heartbeat",
		Message:   "heartbeat",
		Host: hostEnvelope{
			Hostname:      snap.Host.Hostname,
			FQDN:          snap.Host.FQDN,
			OS:            snap.Host.OS,
			OSVersion:     snap.Host.OSVersion,
			OSBuild:       snap.Host.OSBuild,
			Arch:          snap.Host.Arch,
			PrimaryIP:     snap.Host.PrimaryIP,
			IPAddrs:       snap.Host.IPAddrs,
			MACAddrs:      snap.Host.MACAddrs,
			Timezone:      snap.Host.Timezone,
			BootTime:      bootTime,
			UptimeSeconds: snap.Host.UptimeSeconds,
		},
		Agent: agentEnvelope{
			Version:       s.Version,
			UptimeSeconds: int64(time.Since(s.LastRestart).Seconds()),
			LastRestart:   s.LastRestart.UTC().Format(time.RFC3339),
		},
		Identity: identityEnvelope{
			Domain:    snap.Identity.Domain,
			Joined:    snap.Identity.Joined,
			AADJoined: snap.Identity.AADJoined,
		},
	}

	if snap.Hardware != nil {
		env.Hardware = &hardwareEnvelope{
			CPUModel:    snap.Hardware.CPUModel,
			CPUCores:    snap.Hardware.CPUCores,
			RAMTotalGB:  snap.Hardware.RAMTotalGB,
			DiskTotalGB: snap.Hardware.DiskTotalGB,
			DiskFreeGB:  snap.Hardware.DiskFreeGB,
		}
	}

	return env
}
