// Package apkmodel defines the method-identity data model and the ApkInfo
// query surface (spec §3, §4.1 / component C1). It is deliberately
// adapter-shaped: nothing in this package parses an APK. A real host wires
// an ApkInfo implementation backed by an APK/DEX parsing library; that
// extraction step is an out-of-scope external collaborator (spec §1).
package apkmodel

import "fmt"

// Method identifies a Dalvik method by the triple (class, name, descriptor),
// textually the signature "Lpkg/Class;->name(args)ret" (spec §3). Equality
// and hashing are on this triple: two distinct *Method values with the same
// triple are the same method.
type Method struct {
	ClassName  string // "Lpkg/Class;"
	MethodName string // "sendTextMessage"
	Descriptor string // "(Ljava/lang/String;...)V"
}

// New constructs a Method from its three identity fields.
func New(className, methodName, descriptor string) *Method {
	return &Method{ClassName: className, MethodName: methodName, Descriptor: descriptor}
}

// Pattern returns the canonical textual signature used both when building
// evaluator traces and when querying them (spec §4.2, "Method pattern
// helper"). Patterns must be exact, including the full argument list and
// return type, to avoid collisions.
func (m *Method) Pattern() string {
	if m == nil {
		return ""
	}
	return fmt.Sprintf("%s->%s%s", m.ClassName, m.MethodName, m.Descriptor)
}

func (m *Method) String() string { return m.Pattern() }

// Equals implements the identity contract from spec §3: same triple, same
// method, regardless of pointer identity.
func (m *Method) Equals(other *Method) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.ClassName == other.ClassName &&
		m.MethodName == other.MethodName &&
		m.Descriptor == other.Descriptor
}

// Key returns a comparable value suitable for use as a map key, since
// *Method pointers are not guaranteed identical for the same triple across
// independent ApkInfo queries.
func (m *Method) Key() string { return m.Pattern() }

// WrapperSmali is the source-snippet payload returned by
// ApkInfo.GetWrapperSmali, used only for reporting (spec §4.1).
type WrapperSmali struct {
	Smali string
	Hex   string
}
