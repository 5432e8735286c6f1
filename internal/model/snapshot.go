package model

import (
	"github.com/guregu/null/v6"
)

// MarketStatus is the exchange state attached to a snapshot.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "Open"
	MarketClosed  MarketStatus = "Closed"
	MarketUnknown MarketStatus = "Unknown"
)

// SymbolSnapshot is the latest known quote and fundamentals for one ticker.
//
// Every field except Symbol is optional. An invalid null value means the field
// was not provided, which is different from a provided zero. Absent fields are
// omitted from the JSON form so a partial snapshot only carries what it knows.
type SymbolSnapshot struct {
	Symbol string `json:"symbol"`

	Date             null.String `json:"Date,omitzero"`
	CurrentPrice     null.Float  `json:"currentPrice,omitzero"`
	DayChange        null.Float  `json:"dayChange,omitzero"`
	DayChangePercent null.Float  `json:"dayChangePercent,omitzero"`
	PreviousClose    null.Float  `json:"previousClose,omitzero"`
	FiftyTwoWeekHigh null.Float  `json:"fiftyTwoWeekHigh,omitzero"`
	FiftyTwoWeekLow  null.Float  `json:"fiftyTwoWeekLow,omitzero"`
	MarketCap        null.Float  `json:"marketCap,omitzero"`
	Beta             null.Float  `json:"beta,omitzero"`
	Name             null.String `json:"name,omitzero"`
	Sector           null.String `json:"sector,omitzero"`
	Volume           null.Float  `json:"volume,omitzero"`
	PERatio          null.Float  `json:"peRatio,omitzero"`

	AverageVolume10Days     null.Float  `json:"averageVolume10days,omitzero"`
	TotalAssets             null.Float  `json:"totalAssets,omitzero"`
	Open                    null.Float  `json:"open,omitzero"`
	DayLow                  null.Float  `json:"dayLow,omitzero"`
	DayHigh                 null.Float  `json:"dayHigh,omitzero"`
	DividendRate            null.Float  `json:"dividendRate,omitzero"`
	DividendYield           null.Float  `json:"dividendYield,omitzero"`
	PayoutRatio             null.Float  `json:"payoutRatio,omitzero"`
	ForwardPE               null.Float  `json:"forwardPE,omitzero"`
	ProfitMargins           null.Float  `json:"profitMargins,omitzero"`
	EnterpriseValue         null.Float  `json:"enterpriseValue,omitzero"`
	PriceToSales            null.Float  `json:"priceToSalesTrailing12Months,omitzero"`
	FiftyDayAverage         null.Float  `json:"fiftyDayAverage,omitzero"`
	TwoHundredDayAverage    null.Float  `json:"twoHundredDayAverage,omitzero"`
	SharesOutstanding       null.Float  `json:"sharesOutstanding,omitzero"`
	SharesShort             null.Float  `json:"sharesShort,omitzero"`
	ShortRatio              null.Float  `json:"shortRatio,omitzero"`
	BookValue               null.Float  `json:"bookValue,omitzero"`
	PriceToBook             null.Float  `json:"priceToBook,omitzero"`
	TotalCash               null.Float  `json:"totalCash,omitzero"`
	TotalDebt               null.Float  `json:"totalDebt,omitzero"`
	Revenue                 null.Float  `json:"revenue,omitzero"`
	RevenuePerShare         null.Float  `json:"revenuePerShare,omitzero"`
	ReturnOnAssets          null.Float  `json:"returnOnAssets,omitzero"`
	ReturnOnEquity          null.Float  `json:"returnOnEquity,omitzero"`
	OperatingCashflow       null.Float  `json:"operatingCashflow,omitzero"`
	FreeCashflow            null.Float  `json:"freeCashflow,omitzero"`
	GrossMargins            null.Float  `json:"grossMargins,omitzero"`
	EbitdaMargins           null.Float  `json:"ebitdaMargins,omitzero"`
	OperatingMargins        null.Float  `json:"operatingMargins,omitzero"`
	RecommendationMean      null.Float  `json:"recommendationMean,omitzero"`
	NumberOfAnalystOpinions null.Float  `json:"numberOfAnalystOpinions,omitzero"`
	TargetHighPrice         null.Float  `json:"targetHighPrice,omitzero"`
	TargetLowPrice          null.Float  `json:"targetLowPrice,omitzero"`
	TargetMeanPrice         null.Float  `json:"targetMeanPrice,omitzero"`
	TargetMedianPrice       null.Float  `json:"targetMedianPrice,omitzero"`
	Currency                null.String `json:"currency,omitzero"`
	QuoteType               null.String `json:"quoteType,omitzero"`

	// User-owned. Upstream decoders never set these.
	Quantity     null.Float `json:"quantity,omitzero"`
	AvgCostBasis null.Float `json:"avgCostBasis,omitzero"`

	LastUpdated  null.String  `json:"lastUpdated,omitzero"`
	MarketStatus MarketStatus `json:"marketStatus,omitempty"`
}

// Holding returns a partial snapshot carrying only the user-owned fields.
func Holding(symbol string, quantity, avgCostBasis float64) SymbolSnapshot {
	return SymbolSnapshot{
		Symbol:       symbol,
		Quantity:     null.FloatFrom(quantity),
		AvgCostBasis: null.FloatFrom(avgCostBasis),
	}
}
