package sshserver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNameColorIsStable(t *testing.T) {
	require.Equal(t, nameColor("alice"), nameColor("alice"))
	require.Contains(t, namePalette, nameColor("bob"))
}

func TestColorizeSender(t *testing.T) {
	require.Equal(t, nameColor("alice")+"alice"+colorReset+": hi: there", colorizeSender("alice: hi: there"))
	require.Equal(t, "Enter your username:", colorizeSender("Enter your username:"))
	require.Equal(t, ": odd", colorizeSender(": odd"))
}
