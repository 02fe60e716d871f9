package apkmodel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/open-quark/quark-engine-go/apkmodel"
	"github.com/open-quark/quark-engine-go/fixtureapk"
)

func TestMethod_PatternAndEquals(t *testing.T) {
	m1 := apkmodel.New("Landroid/app/Activity;", "onCreate", "(Landroid/os/Bundle;)V")
	m2 := apkmodel.New("Landroid/app/Activity;", "onCreate", "(Landroid/os/Bundle;)V")
	m3 := apkmodel.New("Landroid/app/Activity;", "onResume", "()V")

	assert.Equal(t, "Landroid/app/Activity;->onCreate(Landroid/os/Bundle;)V", m1.Pattern())
	assert.True(t, m1.Equals(m2))
	assert.False(t, m1.Equals(m3))
}

func TestIsSubclass(t *testing.T) {
	apk := fixtureapk.New()
	apk.AddSuperclass("LChild;", "LMiddle;")
	apk.AddSuperclass("LMiddle;", "LBase;")
	apk.AddSuperclass("LBase;", apkmodel.ObjectClass)

	assert.True(t, apkmodel.IsSubclass(apk, "LChild;", "LBase;"))
	assert.True(t, apkmodel.IsSubclass(apk, "LChild;", "LChild;"))
	assert.False(t, apkmodel.IsSubclass(apk, "LChild;", "LUnrelated;"))
}

func TestIsSubclass_HandlesCyclesWithoutHanging(t *testing.T) {
	apk := fixtureapk.New()
	apk.AddSuperclass("LA;", "LB;")
	apk.AddSuperclass("LB;", "LA;") // cycle

	assert.False(t, apkmodel.IsSubclass(apk, "LA;", "LNotThere;"))
}
