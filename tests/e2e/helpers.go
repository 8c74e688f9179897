package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// findCrownestBinary finds the crownest binary under test: $CROWNEST_BIN
// when set, else the first crownest on PATH.
func findCrownestBinary() (string, error) {
	if bin := os.Getenv("CROWNEST_BIN"); bin != "" {
		return filepath.Abs(bin)
	}
	path, err := exec.LookPath("crownest")
	if err != nil {
		return "", fmt.Errorf("could not find 'crownest' binary in PATH; build it with 'go build -o bin/crownest ./cmd/crownest'")
	}
	return path, nil
}

// storeArgs points a command at a file store inside dir.
func storeArgs(dir string) []string {
	return []string{"--store", "file", "--store-path", filepath.Join(dir, "table.yml")}
}
