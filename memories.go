/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// MemoryRecord is a single date-tagged photo.
type MemoryRecord struct {
	Image string `json:"image" yaml:"image"`
	Month string `json:"month" yaml:"month"`
	Year  string `json:"year" yaml:"year"`
}

func (m MemoryRecord) remote() bool {
	return strings.HasPrefix(m.Image, "http")
}

// demoMemories is played when the manifest cannot be read.
var demoMemories = []MemoryRecord{
	{Image: "https://picsum.photos/seed/picnic1/600/450", Month: "March", Year: "2024"},
	{Image: "https://picsum.photos/seed/picnic2/600/450", Month: "July", Year: "2024"},
	{Image: "https://picsum.photos/seed/picnic3/600/450", Month: "December", Year: "2024"},
	{Image: "https://picsum.photos/seed/picnic4/600/450", Month: "February", Year: "2025"},
	{Image: "https://picsum.photos/seed/picnic5/600/450", Month: "September", Year: "2025"},
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func readMemories(path string) ([]MemoryRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	records := []MemoryRecord{}

	if isYAML(path) {
		err = yaml.Unmarshal(data, &records)
	} else {
		err = json.Unmarshal(data, &records)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return records, nil
}

// loadMemories reads the manifest once. Any failure to read or decode it
// falls back to demoMemories; an empty manifest is returned as-is.
func loadMemories(cfg *Config) []MemoryRecord {
	records, err := readMemories(cfg.memories)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logf(cfg, "LOAD: Manifest %s not found, using demo memories", cfg.memories)
		} else {
			logf(cfg, "LOAD: %v, using demo memories", err)
		}

		return append([]MemoryRecord(nil), demoMemories...)
	}

	for _, r := range records {
		if slotIndex(r.Month, r.Year) < 0 {
			logf(cfg, "LOAD: %q (%s %s) is outside the timeline and can never be guessed", r.Image, r.Month, r.Year)
		}
	}

	logf(cfg, "LOAD: Read %d memories from %s", len(records), cfg.memories)

	return records
}

func writeMemories(path string, records []MemoryRecord) error {
	var (
		data []byte
		err  error
	)

	if isYAML(path) {
		data, err = yaml.Marshal(records)
	} else {
		data, err = json.MarshalIndent(records, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
