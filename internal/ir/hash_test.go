package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	problem := Object{
		"algebra":    String("lat3"),
		"generators": Array{IntArray([]int{0}), IntArray([]int{1})},
	}

	f1, err := Fingerprint(problem)
	require.NoError(t, err)
	f2, err := Fingerprint(problem)
	require.NoError(t, err)

	assert.Equal(t, f1, f2)
	assert.Len(t, f1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintChangesWithInput(t *testing.T) {
	f1, err := Fingerprint(Object{"power": Int(2)})
	require.NoError(t, err)
	f2, err := Fingerprint(Object{"power": Int(3)})
	require.NoError(t, err)

	assert.NotEqual(t, f1, f2)
}

func TestFingerprintRejectsFloats(t *testing.T) {
	_, err := Fingerprint(Object{"bad": nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Fingerprint")
}

func TestClosureDigestIgnoresOrder(t *testing.T) {
	a := []Element{NewElement(0, 1), NewElement(1, 0), NewElement(1, 1)}
	b := []Element{NewElement(1, 1), NewElement(0, 1), NewElement(1, 0)}

	assert.Equal(t, ClosureDigest(a), ClosureDigest(b))
	assert.NotEqual(t, ClosureDigest(a), ClosureDigest(a[:2]))
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte("[1,2]")
	assert.NotEqual(t, hashWithDomain(DomainProblem, data), hashWithDomain(DomainClosure, data))
}
