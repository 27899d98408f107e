package sshserver

import (
	"hash/fnv"
	"strings"
)

const colorReset = "\033[0m"

var namePalette = []string{
	"\033[31m", // Red
	"\033[32m", // Green
	"\033[33m", // Yellow
	"\033[34m", // Blue
	"\033[35m", // Magenta
	"\033[36m", // Cyan
}

// nameColor picks a stable palette color for a display name.
func nameColor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return namePalette[h.Sum32()%uint32(len(namePalette))]
}

// colorizeSender colors the "name" part of a "name: text" line. Lines without
// a sender prefix are returned unchanged.
func colorizeSender(line string) string {
	name, text, ok := strings.Cut(line, ": ")
	if !ok || name == "" {
		return line
	}
	return nameColor(name) + name + colorReset + ": " + text
}
