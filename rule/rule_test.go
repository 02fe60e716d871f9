package rule_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-quark/quark-engine-go/rule"
)

const smsLocationRule = `{
  "crime": "leaking device location via SMS",
  "permission": ["android.permission.ACCESS_FINE_LOCATION", "android.permission.SEND_SMS"],
  "api": [
    {"class": "Landroid/location/LocationManager;", "method": "getLastKnownLocation", "descriptor": "(Ljava/lang/String;)Landroid/location/Location;"},
    {"class": "Landroid/telephony/SmsManager;", "method": "sendTextMessage", "descriptor": "(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;Landroid/app/PendingIntent;Landroid/app/PendingIntent;)V"}
  ],
  "score": 5,
  "label": ["privacy", "location"],
  "keywords": [null, ["http://"]]
}`

func TestRule_UnmarshalAndValidate(t *testing.T) {
	r := &rule.Rule{}
	require.NoError(t, json.Unmarshal([]byte(smsLocationRule), r))
	require.NoError(t, r.Validate())

	assert.Equal(t, "leaking device location via SMS", r.Crime)
	assert.Equal(t, 5, r.Score)
	assert.Nil(t, r.Keywords[0])
	require.NotNil(t, r.Keywords[1])
	assert.Equal(t, []string{"http://"}, r.Keywords[1].Values)
}

func TestRule_ValidateRejectsMalformed(t *testing.T) {
	cases := []string{
		`{"crime":"x","permission":[],"api":[{"class":"LA;","method":"m","descriptor":"()V"},{"class":"LB;","method":"n","descriptor":"()V"}],"score":0,"label":[]}`,
		`{"crime":"","permission":[],"api":[{"class":"LA;","method":"m","descriptor":"()V"},{"class":"LB;","method":"n","descriptor":"()V"}],"score":1,"label":[]}`,
		`{"crime":"x","permission":[],"api":[{"class":"LA;","method":"","descriptor":"()V"},{"class":"LB;","method":"n","descriptor":"()V"}],"score":1,"label":[]}`,
		`{"crime":"x","permission":[],"api":[{"class":"LA;","method":"m","descriptor":"()V"},{"class":"LB;","method":"n","descriptor":"()V"}],"score":1}`,
	}
	for _, c := range cases {
		r := &rule.Rule{}
		require.NoError(t, json.Unmarshal([]byte(c), r))
		assert.ErrorIs(t, r.Validate(), rule.ErrMalformedRule)
	}
}

func TestRule_MarshalRoundTrip(t *testing.T) {
	r := &rule.Rule{}
	require.NoError(t, json.Unmarshal([]byte(smsLocationRule), r))

	data, err := json.Marshal(r)
	require.NoError(t, err)

	r2 := &rule.Rule{}
	require.NoError(t, json.Unmarshal(data, r2))
	assert.Equal(t, r.Crime, r2.Crime)
	assert.Equal(t, r.API, r2.API)
	assert.Equal(t, r.Keywords[1].Values, r2.Keywords[1].Values)
}

func TestRegistry_LoadSkipsMalformedAndGroups(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(smsLocationRule), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"crime":"bad"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("not json"), 0o600))

	reg := rule.NewRegistry()
	require.NoError(t, reg.Load(dir))

	require.Len(t, reg.All(), 1)
	require.Len(t, reg.Warnings, 1)

	byCrime := reg.GroupByCrime()
	assert.Contains(t, byCrime, "leaking device location via SMS")

	byLabel := reg.GroupByLabel()
	assert.Contains(t, byLabel, "privacy")
	assert.Contains(t, byLabel, "location")
}

func TestRegistry_LoadMissingDir(t *testing.T) {
	reg := rule.NewRegistry()
	err := reg.Load(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
