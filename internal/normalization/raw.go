package normalization

// RecordKind tags a raw upstream record.
type RecordKind string

const (
	KindFill   RecordKind = "fill"
	KindIncome RecordKind = "income"
)

// RawRecord is a loosely typed record as delivered by the upstream feed.
// Payload keeps the exchange's own field names; only this package reads it.
type RawRecord struct {
	Kind    RecordKind     `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Field aliases accepted from different exchange payload shapes.
var (
	fillIDKeys       = []string{"externalId", "id", "tradeId"}
	fillSymbolKeys   = []string{"symbol"}
	fillSideKeys     = []string{"side"}
	fillPriceKeys    = []string{"price"}
	fillQtyKeys      = []string{"qty", "quantity", "executedQty"}
	fillFeeKeys      = []string{"commission", "fee"}
	fillFeeAssetKeys = []string{"commissionAsset", "feeAsset"}
	fillTimeKeys     = []string{"time", "timestamp"}
	fillOrderKeys    = []string{"orderId", "order_id"}

	incomeIDKeys     = []string{"externalId", "tranId", "id"}
	incomeSymbolKeys = []string{"symbol"}
	incomeTypeKeys   = []string{"incomeType", "type"}
	incomeAmountKeys = []string{"income", "amount"}
	incomeAssetKeys  = []string{"asset"}
	incomeTimeKeys   = []string{"time", "timestamp"}
)

// lookup returns the first present, non-nil value among keys.
func lookup(payload map[string]any, keys []string) (any, string, bool) {
	for _, k := range keys {
		if v, ok := payload[k]; ok && v != nil {
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			return v, k, true
		}
	}
	return nil, keys[0], false
}
