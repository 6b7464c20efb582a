package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// One submitted mutation (place/cancel) decomposes on the contract side into
// several sub-effects (match against resting orders, rest the remainder, ...),
// each of which succeeds or fails on its own. The contract reports them as a
// list of externally tagged {"Ok": ...} / {"Err": ...} objects. MutationResult
// mirrors that shape as a tagged union so callers are forced to handle both
// arms per item.

// SuccessKind enumerates the Ok variants of a sub-operation result.
type SuccessKind string

const (
	Accepted        SuccessKind = "Accepted"
	Filled          SuccessKind = "Filled"
	PartiallyFilled SuccessKind = "PartiallyFilled"
	Amended         SuccessKind = "Amended"
	Cancelled       SuccessKind = "Cancelled"
)

// FailureKind enumerates the Err variants of a sub-operation result.
type FailureKind string

const (
	ValidationFailed FailureKind = "ValidationFailed"
	DuplicateOrderID FailureKind = "DuplicateOrderID"
	NoMatch          FailureKind = "NoMatch"
	OrderNotFound    FailureKind = "OrderNotFound"
)

// Success is one successful sub-effect of a mutation.
// OrderID/Side/Price/Qty are populated per variant; Accepted and Cancelled
// carry only the order id and timestamp.
type Success struct {
	Kind    SuccessKind     `json:"kind"`
	OrderID uint64          `json:"order_id"`
	Side    Side            `json:"side,omitempty"`
	Price   decimal.Decimal `json:"price,omitempty"`
	Qty     uint64          `json:"qty,omitempty"`
	Ts      uint64          `json:"ts,omitempty"`
}

// Failure is one failed sub-effect of a mutation. Reason is set for
// ValidationFailed; the remaining variants carry the offending order id.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	OrderID uint64      `json:"order_id,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// Error implements error so a Failure can be wrapped and logged directly.
func (f Failure) Error() string {
	if f.Kind == ValidationFailed {
		return fmt.Sprintf("validation failed: %s", f.Reason)
	}
	return fmt.Sprintf("%s: order %d", f.Kind, f.OrderID)
}

// MutationResult is one item of the result list returned by a mutating call.
// Exactly one of the two arms is set.
type MutationResult struct {
	ok  *Success
	err *Failure
}

// OkResult wraps a Success into a result item.
func OkResult(s Success) MutationResult { return MutationResult{ok: &s} }

// ErrResult wraps a Failure into a result item.
func ErrResult(f Failure) MutationResult { return MutationResult{err: &f} }

// IsOk reports whether the item is the Ok arm.
func (r MutationResult) IsOk() bool { return r.ok != nil }

// Ok returns the success payload and whether the item is the Ok arm.
func (r MutationResult) Ok() (Success, bool) {
	if r.ok == nil {
		return Success{}, false
	}
	return *r.ok, true
}

// Err returns the failure payload and whether the item is the Err arm.
func (r MutationResult) Err() (Failure, bool) {
	if r.err == nil {
		return Failure{}, false
	}
	return *r.err, true
}

// Wire shapes. The contract serializes enums with external tagging:
//
//	{"Ok": {"Filled": {"order_id": 2, "side": "Bid", "price": 10.5, "qty": 3, "ts": 1}}}
//	{"Err": {"ValidationFailed": "quantity must be positive"}}
//	{"Err": {"NoMatch": 42}}

type successBody struct {
	ID      uint64          `json:"id"`
	OrderID uint64          `json:"order_id"`
	Side    Side            `json:"side"`
	Price   decimal.Decimal `json:"price"`
	Qty     uint64          `json:"qty"`
	Ts      uint64          `json:"ts"`
}

func (r MutationResult) MarshalJSON() ([]byte, error) {
	switch {
	case r.ok != nil:
		body := map[string]interface{}{}
		switch r.ok.Kind {
		case Accepted, Cancelled, Amended:
			body["id"] = r.ok.OrderID
		default:
			body["order_id"] = r.ok.OrderID
			body["side"] = r.ok.Side
			body["price"] = r.ok.Price
			body["qty"] = r.ok.Qty
		}
		if r.ok.Ts != 0 {
			body["ts"] = r.ok.Ts
		}
		return json.Marshal(map[string]interface{}{
			"Ok": map[string]interface{}{string(r.ok.Kind): body},
		})
	case r.err != nil:
		var payload interface{} = r.err.OrderID
		if r.err.Kind == ValidationFailed {
			payload = r.err.Reason
		}
		return json.Marshal(map[string]interface{}{
			"Err": map[string]interface{}{string(r.err.Kind): payload},
		})
	default:
		return nil, fmt.Errorf("empty mutation result")
	}
}

func (r *MutationResult) UnmarshalJSON(data []byte) error {
	var outer struct {
		Ok  map[string]json.RawMessage `json:"Ok"`
		Err map[string]json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &outer); err != nil {
		return fmt.Errorf("decode mutation result: %w", err)
	}

	switch {
	case outer.Ok != nil:
		for variant, raw := range outer.Ok {
			var body successBody
			if err := json.Unmarshal(raw, &body); err != nil {
				return fmt.Errorf("decode %s payload: %w", variant, err)
			}
			s := Success{
				Kind:    SuccessKind(variant),
				OrderID: body.OrderID,
				Side:    body.Side,
				Price:   body.Price,
				Qty:     body.Qty,
				Ts:      body.Ts,
			}
			// Accepted/Amended/Cancelled tag the order id as "id".
			if s.OrderID == 0 {
				s.OrderID = body.ID
			}
			switch s.Kind {
			case Accepted, Filled, PartiallyFilled, Amended, Cancelled:
			default:
				return fmt.Errorf("unknown success variant %q", variant)
			}
			r.ok, r.err = &s, nil
			return nil
		}
		return fmt.Errorf("empty Ok payload")

	case outer.Err != nil:
		for variant, raw := range outer.Err {
			f := Failure{Kind: FailureKind(variant)}
			switch f.Kind {
			case ValidationFailed:
				if err := json.Unmarshal(raw, &f.Reason); err != nil {
					return fmt.Errorf("decode %s payload: %w", variant, err)
				}
			case DuplicateOrderID, NoMatch, OrderNotFound:
				if err := json.Unmarshal(raw, &f.OrderID); err != nil {
					return fmt.Errorf("decode %s payload: %w", variant, err)
				}
			default:
				return fmt.Errorf("unknown failure variant %q", variant)
			}
			r.err, r.ok = &f, nil
			return nil
		}
		return fmt.Errorf("empty Err payload")

	default:
		return fmt.Errorf("mutation result has neither Ok nor Err arm")
	}
}
