package curve_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TaceoLabs/oprf-service-sub000/pkg/curve"
)

func TestBaseIsOnCurveAndInSubgroup(t *testing.T) {
	g := curve.Base()
	assert.True(t, g.IsOnCurve())
	assert.False(t, g.IsIdentity())
	assert.True(t, g.IsInSubgroup())
}

func TestIdentityLaws(t *testing.T) {
	g := curve.Base()
	id := curve.Identity()
	assert.True(t, g.Add(id).Equal(g))
	assert.True(t, id.Add(id).Equal(id))
}

func TestScalarMulDistributesOverAdd(t *testing.T) {
	s1, err := curve.RandomFr()
	require.NoError(t, err)
	s2, err := curve.RandomFr()
	require.NoError(t, err)

	g := curve.Base()
	lhs := g.ScalarMul(s1.Add(s2))
	rhs := g.ScalarMul(s1).Add(g.ScalarMul(s2))
	assert.True(t, lhs.Equal(rhs))
}

func TestNegCancels(t *testing.T) {
	g := curve.Base()
	assert.True(t, g.Add(g.Neg()).IsIdentity())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s, err := curve.RandomFr()
	require.NoError(t, err)
	p := curve.Base().ScalarMul(s)

	encoded := p.Bytes()
	decoded, err := curve.DecodePoint(encoded)
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
}

func TestHashToCurveIsDeterministicAndValid(t *testing.T) {
	p1 := curve.HashToCurve("test-domain", []byte("hello"))
	p2 := curve.HashToCurve("test-domain", []byte("hello"))
	assert.True(t, p1.Equal(p2))
	assert.True(t, p1.IsOnCurve())
	assert.False(t, p1.IsIdentity())
	assert.True(t, p1.IsInSubgroup())

	p3 := curve.HashToCurve("test-domain", []byte("world"))
	assert.False(t, p1.Equal(p3))
}

func TestFrInverse(t *testing.T) {
	s, err := curve.RandomFr()
	require.NoError(t, err)
	inv, ok := s.Inverse()
	require.True(t, ok)
	assert.True(t, s.Mul(inv).Equal(curve.FrOne()))

	_, ok = curve.FrZero().Inverse()
	assert.False(t, ok)
}

func TestPermuteT4IsDeterministic(t *testing.T) {
	in := [4]curve.Fq{curve.FqFromUint64(1), curve.FqFromUint64(2), curve.FqFromUint64(3), curve.FqFromUint64(4)}
	out1 := curve.PermuteT4(in)
	out2 := curve.PermuteT4(in)
	assert.Equal(t, out1, out2)
}
