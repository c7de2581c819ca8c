package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSideReverse(t *testing.T) {
	assert.Equal(t, Buy, Sell.Reverse())
	assert.Equal(t, Sell, Buy.Reverse())
}

func TestPairSymbolAndString(t *testing.T) {
	p := Pair{Base: "DOGE", Quote: "BUSD"}
	assert.Equal(t, "DOGEBUSD", p.Symbol())
	assert.Equal(t, "DOGE/BUSD", p.String())
}

func TestOrderClientID(t *testing.T) {
	o := Order{ID: 42, TraderName: "trader1"}
	assert.Equal(t, "trader1-42", o.ClientID())
	assert.Equal(t, "trader1-42", o.AttemptClientID(0))
	assert.Equal(t, "trader1-42-a1", o.AttemptClientID(1))
}

func TestOrderClientIDPanicsWithoutPersistedID(t *testing.T) {
	o := Order{ID: UnsetID, TraderName: "trader1"}
	assert.Panics(t, func() { o.ClientID() })
}

func TestFragmentIsInitialAndIsFree(t *testing.T) {
	seeded := Fragment{SpawningOrder: UnsetID, ComposedOrder: UnsetID}
	assert.True(t, seeded.IsInitial())
	assert.True(t, seeded.IsFree())

	spawned := Fragment{SpawningOrder: 5, ComposedOrder: 9}
	assert.False(t, spawned.IsInitial())
	assert.False(t, spawned.IsFree())
}

func TestFragmentPairAndOrderPair(t *testing.T) {
	f := Fragment{Base: "DOGE", Quote: "BUSD"}
	assert.Equal(t, Pair{Base: "DOGE", Quote: "BUSD"}, f.Pair())

	o := Order{Base: "DOGE", Quote: "BUSD"}
	assert.Equal(t, Pair{Base: "DOGE", Quote: "BUSD"}, o.Pair())
}
