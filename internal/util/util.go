// Package util provides common helpers used across the towpack pipeline.
package util

import (
	"path/filepath"
	"strings"
)

// Stem returns the file name without its extension. A dotfile whose
// only dot is the leading one has no extension to strip.
func Stem(name string) string {
	base := filepath.Base(name)
	ext := filepath.Ext(base)
	if ext == base {
		return base
	}
	return strings.TrimSuffix(base, ext)
}

// HasExtFold reports whether name carries one of the given extensions,
// compared case-insensitively. Extensions must include the leading dot.
func HasExtFold(name string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// DeploymentID extracts the deployment identifier from a deployment
// directory name. Deployment directories follow the convention
// <voyage>_<platform>_<deploymentID>, so the ID is the last
// underscore-delimited segment.
func DeploymentID(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	parts := strings.Split(base, "_")
	return parts[len(parts)-1]
}
