package decimal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringRoundTrip(t *testing.T) {
	inputs := []string{
		"0.00000000",
		"1.00000000",
		"123.45670000",
		"-7.00000001",
		"1000000.12345678",
	}
	for _, s := range inputs {
		d, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, s, d.String())
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-number")
	assert.Error(t, err)
}

func TestArithmeticCanonicalizesResult(t *testing.T) {
	a := MustParse("0.1")
	b := MustParse("0.2")
	assert.Equal(t, "0.30000000", a.Add(b).String())
}

func TestDivPanicsOnZero(t *testing.T) {
	assert.Panics(t, func() {
		MustParse("1").Div(Zero)
	})
}

func TestTickFilter(t *testing.T) {
	tick := MustParse("0.01000000")
	filtered, remainder := MustParse("1.23456789").TickFilter(tick)
	assert.Equal(t, "1.23000000", filtered.String())
	assert.Equal(t, "0.00456789", remainder.String())
}

func TestTickFilterZeroTickIsNoOp(t *testing.T) {
	v := MustParse("1.23456789")
	filtered, remainder := v.TickFilter(Zero)
	assert.True(t, filtered.Equal(v))
	assert.True(t, remainder.IsZero())
}

func TestComparisons(t *testing.T) {
	a := MustParse("1.00000000")
	b := MustParse("2.00000000")
	assert.True(t, a.LessThan(b))
	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.LessOrEqual(a))
	assert.True(t, a.GreaterOrEqual(a))
	assert.False(t, a.Equal(b))
}

func TestFromFloatCanonicalizesAwayBinaryDrift(t *testing.T) {
	d := FromFloat(0.1 + 0.2)
	assert.Equal(t, "0.30000000", d.String())
}

func TestJSONRoundTrip(t *testing.T) {
	d := MustParse("42.50000000")
	data, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"42.50000000"`, string(data))

	var back Decimal
	require.NoError(t, back.UnmarshalJSON(data))
	assert.True(t, d.Equal(back))

	var fromNumber Decimal
	require.NoError(t, fromNumber.UnmarshalJSON([]byte("42.5")))
	assert.True(t, d.Equal(fromNumber))
}

func TestScanFromDriverValues(t *testing.T) {
	var d Decimal
	require.NoError(t, d.Scan("3.14000000"))
	assert.Equal(t, "3.14000000", d.String())

	var fromInt Decimal
	require.NoError(t, fromInt.Scan(int64(7)))
	assert.Equal(t, "7.00000000", fromInt.String())

	var fromNil Decimal
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsZero())
}
