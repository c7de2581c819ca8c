package fulfillment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotengine/internal/apperrors"
	"spotengine/internal/decimal"
	"spotengine/internal/model"
)

func TestFromTradeListEntry(t *testing.T) {
	f, err := FromTradeListEntry(TradeListEntry{
		Qty: "1.00000000", QuoteQty: "5.00000000", Commission: "0.00100000",
		CommissionAsset: "BUSD", Time: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.00000000", f.AmountBase.String())
	assert.Equal(t, "5.00000000", f.AmountQuote.String())
	assert.Equal(t, "BUSD", f.FeeAsset)
	assert.Equal(t, 1, f.TradeCount)
}

func TestFromPlaceOrderFillAndFromExecutionReport(t *testing.T) {
	f, err := FromPlaceOrderFill(PlaceOrderFill{
		Qty: "2.00000000", QuoteQty: "10.00000000", Commission: "0.00200000",
		CommissionAsset: "DOGE", Time: 2000,
	})
	require.NoError(t, err)
	assert.Equal(t, "10.00000000", f.AmountQuote.String())

	e, err := FromExecutionReport(ExecutionReport{
		LastExecutedQty: "3.00000000", LastExecutedQuoteQty: "15.00000000",
		Commission: "0.00300000", CommissionAsset: "DOGE", TradeTime: 3000,
	})
	require.NoError(t, err)
	assert.Equal(t, "3.00000000", e.AmountBase.String())
}

func TestAccumulateSumsAcrossTrades(t *testing.T) {
	first, err := FromTradeListEntry(TradeListEntry{Qty: "1.00000000", QuoteQty: "5.00000000", Commission: "0.00100000", CommissionAsset: "BUSD", Time: 1000})
	require.NoError(t, err)
	second, err := FromTradeListEntry(TradeListEntry{Qty: "2.00000000", QuoteQty: "9.00000000", Commission: "0.00200000", CommissionAsset: "BUSD", Time: 2000})
	require.NoError(t, err)

	total, err := Accumulate(first, second)
	require.NoError(t, err)
	assert.Equal(t, "3.00000000", total.AmountBase.String())
	assert.Equal(t, "14.00000000", total.AmountQuote.String())
	assert.Equal(t, "0.00300000", total.Fee.String())
	assert.Equal(t, "BUSD", total.FeeAsset)
	assert.Equal(t, 2, total.TradeCount)
	assert.Equal(t, int64(2000), total.LatestTrade)
}

func TestAccumulateRejectsInconsistentFeeAsset(t *testing.T) {
	first, err := FromTradeListEntry(TradeListEntry{Qty: "1.00000000", QuoteQty: "5.00000000", Commission: "0.00100000", CommissionAsset: "BUSD", Time: 1000})
	require.NoError(t, err)
	second, err := FromTradeListEntry(TradeListEntry{Qty: "1.00000000", QuoteQty: "5.00000000", Commission: "0.00100000", CommissionAsset: "BNB", Time: 2000})
	require.NoError(t, err)

	_, err = Accumulate(first, second)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindIntegrity, apperrors.KindOf(err))
	assert.ErrorIs(t, err, apperrors.ErrInconsistentFeeAsset)
}

func TestFulfillmentPrice(t *testing.T) {
	f := model.Fulfillment{AmountBase: decimal.MustParse("2.00000000"), AmountQuote: decimal.MustParse("10.00000000")}
	assert.Equal(t, "5.00000000", f.Price().String())

	zero := model.Fulfillment{}
	assert.True(t, zero.Price().IsZero())
}
