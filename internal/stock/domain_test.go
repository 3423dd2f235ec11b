package stock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLotInputValidate(t *testing.T) {
	valid := LotInput{
		IngredientID: "tomato",
		SupplierID:   "sup1",
		Quantity:     dec("10"),
		UnitCostHT:   dec("1.5"),
		PurchaseDate: day(0),
		ExpiryDate:   day(5),
	}
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*LotInput)
		want   error
	}{
		{"negative quantity", func(in *LotInput) { in.Quantity = dec("-1") }, ErrInvalidQuantity},
		{"negative cost", func(in *LotInput) { in.UnitCostHT = dec("-0.5") }, ErrInvalidUnitCost},
		{"expiry before purchase", func(in *LotInput) { in.ExpiryDate = day(-1) }, ErrInvalidDates},
		{"rate above one", func(in *LotInput) { r := dec("1.5"); in.DegradationRate = &r }, ErrInvalidDegradationRate},
		{"negative rate", func(in *LotInput) { r := dec("-0.1"); in.DegradationRate = &r }, ErrInvalidDegradationRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			require.ErrorIs(t, in.Validate(), tc.want)
		})
	}

	// Same-day purchase and expiry is allowed.
	sameDay := valid
	sameDay.ExpiryDate = sameDay.PurchaseDate
	require.NoError(t, sameDay.Validate())
}

func TestStatusDerivation(t *testing.T) {
	th := DefaultThresholds()
	today := day(0)

	cases := []struct {
		name   string
		lot    Lot
		status LotStatus
	}{
		{
			"expired yesterday",
			Lot{Quantity: dec("5"), PurchaseDate: day(-10), ExpiryDate: day(-1)},
			StatusExpired,
		},
		{
			"promotion window with enough quantity",
			Lot{Quantity: dec("5"), PurchaseDate: day(-7), ExpiryDate: day(3)},
			StatusPromotion,
		},
		{
			"promotion window but depleted",
			Lot{Quantity: dec("0.5"), PurchaseDate: day(-7), ExpiryDate: day(3)},
			StatusNearExpiry,
		},
		{
			"expires today",
			Lot{Quantity: dec("5"), PurchaseDate: day(-5), ExpiryDate: today},
			StatusPromotion,
		},
		{
			"fresh",
			Lot{Quantity: dec("5"), PurchaseDate: day(-1), ExpiryDate: day(30)},
			StatusFresh,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.status, tc.lot.Status(today, th))
		})
	}
}

func TestStatusIsRecomputedPerDate(t *testing.T) {
	th := DefaultThresholds()
	lot := Lot{Quantity: dec("5"), PurchaseDate: day(0), ExpiryDate: day(10)}

	require.Equal(t, StatusFresh, lot.Status(day(0), th))
	require.Equal(t, StatusPromotion, lot.Status(day(7), th))
	require.Equal(t, StatusExpired, lot.Status(day(11), th))
}

func TestShelfLifePercent(t *testing.T) {
	lot := Lot{PurchaseDate: day(-5), ExpiryDate: day(5)}
	require.True(t, lot.ShelfLifePercent(day(0)).Equal(dec("0.5")))
	require.True(t, lot.ShelfLifePercent(day(6)).IsZero())

	instant := Lot{PurchaseDate: day(0), ExpiryDate: day(0)}
	require.True(t, instant.ShelfLifePercent(day(0)).IsZero())
}

func TestLotValueHelpers(t *testing.T) {
	lot := Lot{Quantity: dec("4"), UnitCostHT: dec("2.5"), PurchaseDate: day(-1), ExpiryDate: day(3)}
	require.True(t, lot.TotalValue().Equal(dec("10")))
	require.Equal(t, 3, lot.DaysUntilExpiry(day(0)))

	require.True(t, PromotionPrice(dec("8"), dec("0.5")).Equal(dec("4")))
}

func TestWasteRecordLossValue(t *testing.T) {
	rec := WasteRecord{QuantityLost: dec("3"), UnitCostHT: dec("1.5")}
	require.True(t, rec.TotalLossValue().Equal(dec("4.5")))
}

func TestConsumeResultCostOfGoods(t *testing.T) {
	res := ConsumeResult{Breakdown: []ConsumptionEntry{
		{Quantity: dec("2"), UnitCostHT: dec("1.0")},
		{Quantity: dec("3"), UnitCostHT: dec("2.0")},
	}}
	require.True(t, res.CostOfGoods().Equal(dec("8")))
	require.True(t, ConsumeResult{}.CostOfGoods().IsZero())
}
