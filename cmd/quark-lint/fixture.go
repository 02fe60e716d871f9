package main

import (
	"github.com/open-quark/quark-engine-go/apkmodel"
	"github.com/open-quark/quark-engine-go/bytecode"
	"github.com/open-quark/quark-engine-go/fixtureapk"
)

// demoFixture builds the small "leaks device location via SMS" app used to
// preview rule confidence with --dry-run: one method fetches the last
// known location and threads the result straight into an SMS send.
func demoFixture() *fixtureapk.Apk {
	apk := fixtureapk.New()

	getLastKnownLocation := apkmodel.New(
		"Landroid/location/LocationManager;",
		"getLastKnownLocation",
		"(Ljava/lang/String;)Landroid/location/Location;",
	)
	sendTextMessage := apkmodel.New(
		"Landroid/telephony/SmsManager;",
		"sendTextMessage",
		"(Ljava/lang/String;Ljava/lang/String;Ljava/lang/String;Landroid/app/PendingIntent;Landroid/app/PendingIntent;)V",
	)

	leak := apkmodel.New("Lcom/example/app/Leaker;", "leak", "()V")
	apk.AddCall(leak, getLastKnownLocation)
	apk.AddCall(leak, sendTextMessage)
	apk.AddMethod(leak, []bytecode.Instruction{
		{Mnemonic: "invoke-virtual", Registers: nil, Parameter: getLastKnownLocation},
		{Mnemonic: "move-result-object", Registers: []string{"v0"}},
		{Mnemonic: "invoke-virtual", Registers: []string{"v0"}, Parameter: sendTextMessage},
	})

	return apk
}
