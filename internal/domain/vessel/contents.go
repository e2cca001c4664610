package vessel

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// VolumePlaces is the rounding precision for all volume arithmetic, in
// decimal places of a microliter.
const VolumePlaces = 6

// Round normalizes a volume figure to the ledger precision.
func Round(v decimal.Decimal) decimal.Decimal {
	return v.Round(VolumePlaces)
}

// Contents maps a solution name to the volume of that solution, in microliters.
type Contents map[string]decimal.Decimal

// Total returns the summed volume of all solutions.
func (c Contents) Total() decimal.Decimal {
	total := decimal.Zero
	for _, v := range c {
		total = total.Add(v)
	}
	return Round(total)
}

// Clone returns a deep copy.
func (c Contents) Clone() Contents {
	out := make(Contents, len(c))
	for name, v := range c {
		out[name] = v
	}
	return out
}

// Merge adds the other contents solution by solution, rounding each sum.
func (c Contents) Merge(other Contents) {
	for name, v := range other {
		c[name] = Round(c[name].Add(v))
	}
}

// Split returns the proportional share of each solution for a withdrawal of
// volume out of total. Zero-volume entries are dropped from the result.
func (c Contents) Split(volume, total decimal.Decimal) Contents {
	out := make(Contents, len(c))
	if total.IsZero() {
		return out
	}
	for name, v := range c {
		share := Round(v.Mul(volume).Div(total))
		if share.IsPositive() {
			out[name] = share
		}
	}
	return out
}

// Value implements driver.Valuer, storing contents as a JSON object.
func (c Contents) Value() (driver.Value, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *Contents) Scan(value interface{}) error {
	if value == nil {
		*c = Contents{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported contents column type %T", value)
	}
	if len(data) == 0 {
		*c = Contents{}
		return nil
	}
	return json.Unmarshal(data, c)
}
