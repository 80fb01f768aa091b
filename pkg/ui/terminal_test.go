package ui

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := output
	output = &buf
	t.Cleanup(func() { output = prev })
	return &buf
}

func TestPrintHelpers(t *testing.T) {
	buf := captureOutput(t)

	PrintInfo("Cities", "portland, buffalo")
	PrintError("Run failed", errors.New("auth rejected"))
	PrintWarning("No geocoder key")
	PrintSuccess("Done")
	PrintHighlight("3 near duplicates")

	out := buf.String()
	assert.Contains(t, out, "Cities")
	assert.Contains(t, out, "portland, buffalo")
	assert.Contains(t, out, "Run failed: auth rejected")
	assert.Contains(t, out, "No geocoder key")
	assert.Contains(t, out, "Done")
	assert.Contains(t, out, "3 near duplicates")
	assert.Equal(t, 5, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestPrintBanner(t *testing.T) {
	buf := captureOutput(t)
	PrintBanner()
	assert.Contains(t, buf.String(), "friend-network location inference")
}
