// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package manifest records what a benchmark session ran, where and with
// which outcome, next to the data files it produced.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/antimetal/perfbench/internal/bench"
	"github.com/antimetal/perfbench/internal/config"
	"github.com/antimetal/perfbench/pkg/host"
	"github.com/antimetal/perfbench/pkg/topology"
)

// FileName is the manifest's name inside the data directory.
const FileName = "run.yaml"

// Manifest describes one benchmark session.
type Manifest struct {
	ID      string    `yaml:"id"`
	Program string    `yaml:"program"`
	Host    host.Info `yaml:"host"`

	Core int   `yaml:"core"`
	CPUs []int `yaml:"cpus"`

	Range     string   `yaml:"range"`
	Runs      int      `yaml:"runs"`
	TimeUnit  string   `yaml:"timeUnit"`
	InputName string   `yaml:"inputName"`
	Functions []string `yaml:"functions"`

	Profile         bool     `yaml:"profile"`
	Frequency       string   `yaml:"frequency,omitempty"`
	RequestedEvents []string `yaml:"requestedEvents,omitempty"`
	SupportedEvents []string `yaml:"supportedEvents,omitempty"`
	// PerfEventParanoid is the kernel's perf_event_paranoid level, when known.
	PerfEventParanoid *int `yaml:"perfEventParanoid,omitempty"`

	Started  time.Time `yaml:"started"`
	Finished time.Time `yaml:"finished"`
	Summary  Summary   `yaml:"summary"`
}

// Summary mirrors bench.Summary.
type Summary struct {
	Inputs         int            `yaml:"inputs"`
	Runs           int            `yaml:"runs"`
	EventRows      map[string]int `yaml:"eventRows,omitempty"`
	SkippedReports int            `yaml:"skippedReports"`
}

// New starts a manifest for a session beginning now.
func New(cfg config.Config, cpus topology.CoreSet, supported []string, info host.Info) *Manifest {
	m := &Manifest{
		ID:        uuid.New().String(),
		Program:   cfg.Program,
		Host:      info,
		Core:      cpus.Core,
		CPUs:      append([]int(nil), cpus.CPUs...),
		Range:     cfg.Range,
		Runs:      cfg.Runs,
		TimeUnit:  cfg.TimeUnit,
		InputName: cfg.InputName,
		Functions: cfg.FunctionSet().Names(),
		Profile:   cfg.Profile,
		Started:   time.Now().UTC(),
	}
	if cfg.Profile {
		m.Frequency = cfg.Frequency
		m.RequestedEvents = cfg.RequestedEvents()
		m.SupportedEvents = append([]string(nil), supported...)
	}
	return m
}

// Finish records the outcome of the session.
func (m *Manifest) Finish(s bench.Summary) {
	m.Finished = time.Now().UTC()
	m.Summary = Summary{
		Inputs:         s.Inputs,
		Runs:           s.Runs,
		SkippedReports: s.SkippedReports,
	}
	if len(s.EventRows) > 0 {
		m.Summary.EventRows = make(map[string]int, len(s.EventRows))
		for event, n := range s.EventRows {
			m.Summary.EventRows[event] = n
		}
	}
}

// Write stores the manifest as dir/run.yaml and returns its path.
func (m *Manifest) Write(dir string) (string, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// Read loads a manifest written by Write.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}
