package rulecache_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-quark/quark-engine-go/rulecache"
)

const sampleRule = `{
  "crime": "leaking device location via SMS",
  "permission": ["android.permission.ACCESS_FINE_LOCATION"],
  "api": [
    {"class": "Landroid/location/LocationManager;", "method": "getLastKnownLocation", "descriptor": "(Ljava/lang/String;)Landroid/location/Location;"},
    {"class": "Landroid/telephony/SmsManager;", "method": "sendTextMessage", "descriptor": "(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;Landroid/app/PendingIntent;Landroid/app/PendingIntent;)V"}
  ],
  "score": 5,
  "label": ["privacy"]
}`

func openCache(t *testing.T) *rulecache.Cache {
	t.Helper()
	c, err := rulecache.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLoadOrValidate_MissThenHit(t *testing.T) {
	c := openCache(t)
	data := []byte(sampleRule)

	r1, err := c.LoadOrValidate("rule.json", data)
	require.NoError(t, err)
	assert.Equal(t, "leaking device location via SMS", r1.Crime)

	hash := rulecache.ContentHash(data)
	cached, ok, err := c.Lookup(hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r1.Crime, cached.Crime)

	r2, err := c.LoadOrValidate("rule.json", data)
	require.NoError(t, err)
	assert.Equal(t, r1.Crime, r2.Crime)
}

func TestLoadOrValidate_RejectsMalformed(t *testing.T) {
	c := openCache(t)
	_, err := c.LoadOrValidate("bad.json", []byte(`{"crime":""}`))
	assert.Error(t, err)
}

func TestLookup_MissOnUnknownHash(t *testing.T) {
	c := openCache(t)
	_, ok, err := c.Lookup("does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_OverwritesOnConflict(t *testing.T) {
	c := openCache(t)
	data := []byte(sampleRule)
	hash := rulecache.ContentHash(data)

	r, err := c.LoadOrValidate("first.json", data)
	require.NoError(t, err)

	r.SourcePath = "second.json"
	require.NoError(t, c.Store(hash, r))

	cached, ok, err := c.Lookup(hash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second.json", cached.SourcePath)
}

func TestLoadRegistry_LoadsValidSkipsMalformed(t *testing.T) {
	c := openCache(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(sampleRule), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"crime":""}`), 0o600))

	reg, err := c.LoadRegistry(dir)
	require.NoError(t, err)
	require.Len(t, reg.All(), 1)
	assert.Equal(t, "leaking device location via SMS", reg.All()[0].Crime)
	assert.Len(t, reg.Warnings, 1)
}

func TestLoadRegistry_SecondCallHitsCache(t *testing.T) {
	c := openCache(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(sampleRule), 0o600))

	reg1, err := c.LoadRegistry(dir)
	require.NoError(t, err)
	require.Len(t, reg1.All(), 1)

	reg2, err := c.LoadRegistry(dir)
	require.NoError(t, err)
	require.Len(t, reg2.All(), 1)
	assert.Equal(t, reg1.All()[0].Crime, reg2.All()[0].Crime)
}
