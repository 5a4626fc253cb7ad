package normalization

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trade-reconciler/internal/domain"
)

// ParseFill converts a raw fill payload into an Execution.
// Returns *MalformedRecordError when a required field is absent or unparseable.
func ParseFill(index int, payload map[string]any) (*domain.Execution, error) {
	bad := func(field, reason string) error {
		return &MalformedRecordError{Index: index, Kind: KindFill, Field: field, Reason: reason}
	}

	symbol, err := requiredString(payload, fillSymbolKeys)
	if err != nil {
		return nil, bad("symbol", err.Error())
	}
	price, err := requiredDecimal(payload, fillPriceKeys)
	if err != nil {
		return nil, bad("price", err.Error())
	}
	qty, err := requiredDecimal(payload, fillQtyKeys)
	if err != nil {
		return nil, bad("quantity", err.Error())
	}
	id, err := requiredString(payload, fillIDKeys)
	if err != nil {
		return nil, bad("externalId", err.Error())
	}
	sideRaw, err := requiredString(payload, fillSideKeys)
	if err != nil {
		return nil, bad("side", err.Error())
	}
	side, ok := parseSide(sideRaw)
	if !ok {
		return nil, bad("side", fmt.Sprintf("unknown side %q", sideRaw))
	}
	ts, err := requiredMillis(payload, fillTimeKeys)
	if err != nil {
		return nil, bad("timestamp", err.Error())
	}

	fee := decimal.Zero
	if v, _, ok := lookup(payload, fillFeeKeys); ok {
		fee, err = toDecimal(v)
		if err != nil {
			return nil, bad("fee", err.Error())
		}
	}

	exec := &domain.Execution{
		ExternalID: id,
		Symbol:     strings.ToUpper(symbol),
		Side:       side,
		Price:      price,
		Quantity:   qty,
		Fee:        fee.Abs(),
		Timestamp:  ts,
	}
	if v, _, ok := lookup(payload, fillFeeAssetKeys); ok {
		exec.FeeAsset = toString(v)
	}
	if v, _, ok := lookup(payload, fillOrderKeys); ok {
		exec.OrderID = toString(v)
	}
	return exec, nil
}

// ParseIncome converts a raw income payload into a LedgerEvent.
// The external id is prefixed with the income type because exchanges reuse
// transaction ids across income types of the same trade.
func ParseIncome(index int, payload map[string]any) (*domain.LedgerEvent, error) {
	bad := func(field, reason string) error {
		return &MalformedRecordError{Index: index, Kind: KindIncome, Field: field, Reason: reason}
	}

	typRaw, err := requiredString(payload, incomeTypeKeys)
	if err != nil {
		return nil, bad("type", err.Error())
	}
	typ := domain.LedgerEventType(strings.ToUpper(typRaw))
	if !typ.AffectsBalance() {
		return nil, bad("type", fmt.Sprintf("unknown income type %q", typRaw))
	}
	amount, err := requiredDecimal(payload, incomeAmountKeys)
	if err != nil {
		return nil, bad("amount", err.Error())
	}
	id, err := requiredString(payload, incomeIDKeys)
	if err != nil {
		return nil, bad("externalId", err.Error())
	}
	ts, err := requiredMillis(payload, incomeTimeKeys)
	if err != nil {
		return nil, bad("timestamp", err.Error())
	}

	// Withdrawals reported as positive magnitudes still reduce the balance.
	if typ == domain.LedgerWithdrawal && amount.IsPositive() {
		amount = amount.Neg()
	}

	event := &domain.LedgerEvent{
		ExternalID: string(typ) + ":" + id,
		Type:       typ,
		Amount:     amount,
		Timestamp:  ts,
	}
	if v, _, ok := lookup(payload, incomeSymbolKeys); ok {
		event.Symbol = strings.ToUpper(toString(v))
	}
	if v, _, ok := lookup(payload, incomeAssetKeys); ok {
		event.Asset = toString(v)
	}
	return event, nil
}

func parseSide(s string) (domain.Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY", "B", "BID":
		return domain.SideBuy, true
	case "SELL", "S", "ASK":
		return domain.SideSell, true
	default:
		return "", false
	}
}

func requiredString(payload map[string]any, keys []string) (string, error) {
	v, _, ok := lookup(payload, keys)
	if !ok {
		return "", fmt.Errorf("is missing")
	}
	s := strings.TrimSpace(toString(v))
	if s == "" {
		return "", fmt.Errorf("is empty")
	}
	return s, nil
}

func requiredDecimal(payload map[string]any, keys []string) (decimal.Decimal, error) {
	v, _, ok := lookup(payload, keys)
	if !ok {
		return decimal.Zero, fmt.Errorf("is missing")
	}
	return toDecimal(v)
}

func requiredMillis(payload map[string]any, keys []string) (int64, error) {
	v, _, ok := lookup(payload, keys)
	if !ok {
		return 0, fmt.Errorf("is missing")
	}
	return toMillis(v)
}

// toString renders scalar payload values; ids often arrive as JSON numbers.
func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return fmt.Sprint(x)
	}
}

// toDecimal parses numbers delivered either as strings or JSON numbers.
// String input keeps full precision; float64 input is converted exactly as printed.
func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err != nil {
			return decimal.Zero, fmt.Errorf("is not a number: %q", x)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("is not a number: %q", x)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case decimal.Decimal:
		return x, nil
	default:
		return decimal.Zero, fmt.Errorf("has unsupported type %T", v)
	}
}

// toMillis accepts unix milliseconds (number or numeric string) or RFC3339 text.
func toMillis(v any) (int64, error) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, fmt.Errorf("is not a timestamp: %q", x)
		}
		return t.UnixMilli(), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("is not a timestamp: %q", x)
		}
		return n, nil
	case float64:
		return int64(x), nil
	case int:
		return int64(x), nil
	case int64:
		return x, nil
	default:
		return 0, fmt.Errorf("has unsupported type %T", v)
	}
}
