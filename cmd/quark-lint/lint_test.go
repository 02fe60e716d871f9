package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRule = `{
  "crime": "leaking device location via SMS",
  "permission": ["android.permission.ACCESS_FINE_LOCATION"],
  "api": [
    {"class": "Landroid/location/LocationManager;", "method": "getLastKnownLocation", "descriptor": "(Ljava/lang/String;)Landroid/location/Location;"},
    {"class": "Landroid/telephony/SmsManager;", "method": "sendTextMessage", "descriptor": "(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;Landroid/app/PendingIntent;Landroid/app/PendingIntent;)V"}
  ],
  "score": 5,
  "label": ["privacy"]
}`

func TestRunLint_ValidDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(validRule), 0o600))

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"lint", dir, "--no-color"})

	err := rootCmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "1 rule(s) loaded")
	assert.Contains(t, out.String(), "0 warning(s)")
}

func TestRunLint_DryRunMatchesFixture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(validRule), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"lint", dir, "--dry-run", "--no-color"})

	err := rootCmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, out.String(), "leaking device location via SMS")
	assert.Contains(t, out.String(), "confidence 100")
}

func TestRunLint_CacheDBReused(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(validRule), 0o600))
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	for i := 0; i < 2; i++ {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&bytes.Buffer{})
		rootCmd.SetArgs([]string{"lint", dir, "--no-color", "--cache-db", dbPath})

		err := rootCmd.Execute()
		require.NoError(t, err)
		assert.Contains(t, out.String(), "1 rule(s) loaded")
	}
}

func TestColorize_NoColorStripsCodes(t *testing.T) {
	noColor = true
	defer func() { noColor = false }()
	got := colorize("[green]ok[reset]")
	assert.Equal(t, "ok", got)
}
