package fixtureapk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/open-quark/quark-engine-go/apkmodel"
	"github.com/open-quark/quark-engine-go/fixtureapk"
)

func TestApk_DeterministicOrdering(t *testing.T) {
	a := apkmodel.New("LA;", "a", "()V")
	b := apkmodel.New("LB;", "b", "()V")
	c := apkmodel.New("LC;", "c", "()V")

	apk := fixtureapk.New()
	apk.AddMethod(a)
	apk.AddMethod(b)
	apk.AddMethod(c)

	got := apk.AllMethods()
	assert.Equal(t, []*apkmodel.Method{a, b, c}, got)

	// Re-adding an existing method must not reorder it.
	apk.AddMethod(a)
	assert.Equal(t, []*apkmodel.Method{a, b, c}, apk.AllMethods())
}

func TestApk_UpperFunc(t *testing.T) {
	caller1 := apkmodel.New("LA;", "one", "()V")
	caller2 := apkmodel.New("LA;", "two", "()V")
	callee := apkmodel.New("LB;", "target", "()V")

	apk := fixtureapk.New()
	apk.AddCall(caller1, callee)
	apk.AddCall(caller2, callee)
	apk.AddCall(caller1, callee) // duplicate, must not double up

	callers := apk.UpperFunc(callee)
	assert.Equal(t, []*apkmodel.Method{caller1, caller2}, callers)
}

func TestApk_FindMethodMiss(t *testing.T) {
	apk := fixtureapk.New()
	_, ok := apk.FindMethod("LX;", "missing", "()V")
	assert.False(t, ok)
}

func TestApk_SuperclassRelationships(t *testing.T) {
	apk := fixtureapk.New()
	apk.AddSuperclass("LChild;", "LParent;")
	apk.AddSuperclass("LChild;", "LInterfaceB;")
	apk.AddSuperclass("LChild;", "LInterfaceA;")

	assert.Equal(t, []string{"LInterfaceA;", "LInterfaceB;", "LParent;"}, apk.SuperclassRelationships("LChild;"))
	assert.Empty(t, apk.SuperclassRelationships("LUnknown;"))
}

func TestApk_GetWrapperSmali(t *testing.T) {
	parent := apkmodel.New("LX;", "run", "()V")
	first := apkmodel.New("LA;", "first", "()V")
	second := apkmodel.New("LB;", "second", "()V")

	apk := fixtureapk.New()
	apk.SetWrapperSmali(parent, first, second, apkmodel.WrapperSmali{Smali: "invoke-virtual {}, LA;->first()V"})

	snippet, ok := apk.GetWrapperSmali(parent, first, second)
	assert.True(t, ok)
	assert.Contains(t, snippet.Smali, "first()V")

	_, ok = apk.GetWrapperSmali(parent, second, first)
	assert.False(t, ok)
}
