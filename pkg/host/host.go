// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package host provides utilities for host and machine identification
package host

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/antimetal/perfbench/pkg/config/environment"
	"github.com/antimetal/perfbench/pkg/kernel"
)

// Info identifies the machine a benchmark ran on.
type Info struct {
	Hostname  string         `yaml:"hostname"`
	Kernel    kernel.Version `yaml:"kernel,omitempty"`
	Arch      string         `yaml:"arch"`
	MachineID string         `yaml:"machineID,omitempty"`
}

// Identify collects what it can about the local machine. Fields that cannot
// be read are left empty.
func Identify() Info {
	info := Info{Arch: runtime.GOARCH, MachineID: MachineID()}
	var release string
	info.Hostname, release = uname()
	if info.Hostname == "" {
		info.Hostname, _ = os.Hostname()
	}
	if release != "" {
		v, err := kernel.ParseRelease(release)
		if err != nil {
			v = kernel.Version{Release: release}
		}
		info.Kernel = v
	}
	return info
}

// MachineID returns the systemd machine ID, or an empty string if the host
// has none.
func MachineID() string {
	hostPaths := environment.GetHostPaths()
	data, err := os.ReadFile(filepath.Join(hostPaths.Etc, "machine-id"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
