// Package util provides shared utility functions.
package util

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// FindBinary resolves an external tool to an executable path.
// Search order:
//  1. configuredPath (if non-empty, must exist and be executable)
//  2. Environment variable (if envVar is non-empty and set)
//  3. ./name for each candidate name (useful for development)
//  4. each candidate name on PATH (via exec.LookPath)
//
// Multiple candidate names cover platform variants such as yt-dlp vs
// yt-dlp.exe. Returns the resolved path or an error naming the tool.
func FindBinary(configuredPath, envVar string, names ...string) (string, error) {
	if configuredPath != "" {
		if isExecutable(configuredPath) {
			return configuredPath, nil
		}
		return "", fmt.Errorf("configured binary %s is not executable", configuredPath)
	}

	if envVar != "" {
		if envPath := os.Getenv(envVar); envPath != "" {
			if isExecutable(envPath) {
				return envPath, nil
			}
		}
	}

	for _, name := range names {
		if isExecutable("./" + name) {
			return "./" + name, nil
		}
	}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("binary %s not found", strings.Join(names, "/"))
}

// isExecutable checks if a file exists and is executable by the current user.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	// Any of owner/group/other executable bits
	return info.Mode()&0111 != 0
}
