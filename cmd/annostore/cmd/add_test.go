package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCmd_StoresAnnotationFromFile(t *testing.T) {
	// Given: an annotation document on disk
	path := filepath.Join(t.TempDir(), "annotation.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"type": "Annotation",
		"motivation": "classifying",
		"target": {"id": "urn:vangogh:testletter", "type": "Letter"}
	}`), 0o644))

	cmd := newAddCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--file", path})

	// When: adding it
	err := cmd.Execute()

	// Then: the command reports the assigned id and echoes the record
	require.NoError(t, err)
	output := buf.String()
	assert.Contains(t, output, "added annotation")
	assert.Contains(t, output, "urn:vangogh:testletter")
	assert.Contains(t, output, `"motivation"`)
}

func TestAddCmd_RejectsAnnotationWithoutTarget(t *testing.T) {
	// Given: a document with no target
	path := filepath.Join(t.TempDir(), "annotation.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": "Annotation"}`), 0o644))

	cmd := newAddCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-f", path})

	// Then: the add fails with the validation message
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "annotation MUST have at least one target")
}

func TestAddCmd_RejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotation.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	cmd := newAddCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"-f", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse annotation")
}
