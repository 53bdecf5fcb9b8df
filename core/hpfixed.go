package core

import (
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
)

// HpFixed is a fixed-point number with an explicit decimal precision (spec
// §3: "HpFixed<6|18>"). All token and share math is performed exactly on
// these: Raw holds the value scaled by 10^Scale as an arbitrary-precision
// integer, so no operation silently truncates beyond what is documented
// here. No third-party fixed-point decimal library appears anywhere in the
// example corpus; math/big is the idiomatic base every example repo reaches
// for when it needs exact integer arithmetic (see DESIGN.md).
type HpFixed struct {
	raw   *big.Int
	scale uint8
}

// ZeroHpFixed returns the additive identity at the given scale.
func ZeroHpFixed(scale uint8) *HpFixed {
	return &HpFixed{raw: new(big.Int), scale: scale}
}

// NewHpFixedFromInt constructs a whole-number HpFixed (e.g. NewHpFixedFromInt(1000, 18)
// for 1000.000000000000000000).
func NewHpFixedFromInt(whole int64, scale uint8) *HpFixed {
	v := new(big.Int).SetInt64(whole)
	v.Mul(v, pow10(scale))
	return &HpFixed{raw: v, scale: scale}
}

// NewHpFixedFromRaw constructs an HpFixed from an already-scaled integer,
// i.e. raw represents value * 10^scale.
func NewHpFixedFromRaw(raw *big.Int, scale uint8) *HpFixed {
	return &HpFixed{raw: new(big.Int).Set(raw), scale: scale}
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Scale returns the number of decimal digits this value is fixed to.
func (h *HpFixed) Scale() uint8 { return h.scale }

// Raw returns a copy of the underlying scaled integer.
func (h *HpFixed) Raw() *big.Int { return new(big.Int).Set(h.raw) }

// Clone returns an independent copy.
func (h *HpFixed) Clone() *HpFixed { return &HpFixed{raw: new(big.Int).Set(h.raw), scale: h.scale} }

func (h *HpFixed) checkScale(o *HpFixed) error {
	if h.scale != o.scale {
		return fmt.Errorf("core: hpfixed scale mismatch: %d vs %d", h.scale, o.scale)
	}
	return nil
}

// Add returns h+o. Both operands must share the same scale.
func (h *HpFixed) Add(o *HpFixed) (*HpFixed, error) {
	if err := h.checkScale(o); err != nil {
		return nil, err
	}
	return &HpFixed{raw: new(big.Int).Add(h.raw, o.raw), scale: h.scale}, nil
}

// Sub returns h-o. Both operands must share the same scale. The result may
// be negative; callers enforcing non-negative balances must check Sign().
func (h *HpFixed) Sub(o *HpFixed) (*HpFixed, error) {
	if err := h.checkScale(o); err != nil {
		return nil, err
	}
	return &HpFixed{raw: new(big.Int).Sub(h.raw, o.raw), scale: h.scale}, nil
}

// Sign returns -1, 0 or 1 per the sign of the value.
func (h *HpFixed) Sign() int { return h.raw.Sign() }

// Cmp compares h to o; both must share the same scale.
func (h *HpFixed) Cmp(o *HpFixed) (int, error) {
	if err := h.checkScale(o); err != nil {
		return 0, err
	}
	return h.raw.Cmp(o.raw), nil
}

// MulFrac multiplies h by the exact rational num/den, flooring the result to
// the same scale. Used for share/ratio math (e.g. boosted revenue weights)
// where the multiplier is itself derived from other HpFixed or integer
// quantities and must not accumulate rounding error across steps.
func (h *HpFixed) MulFrac(num, den *big.Int) *HpFixed {
	if den.Sign() == 0 {
		return ZeroHpFixed(h.scale)
	}
	prod := new(big.Int).Mul(h.raw, num)
	q := new(big.Int)
	q.Div(prod, den) // floor division (den assumed positive)
	return &HpFixed{raw: q, scale: h.scale}
}

// Rat returns the exact rational value represented by h.
func (h *HpFixed) Rat() *big.Rat {
	return new(big.Rat).SetFrac(new(big.Int).Set(h.raw), pow10(h.scale))
}

// FromRat constructs an HpFixed at the given scale by flooring r*10^scale.
func FromRat(r *big.Rat, scale uint8) *HpFixed {
	scaled := new(big.Int).Mul(r.Num(), pow10(scale))
	q := new(big.Int).Div(scaled, r.Denom())
	return &HpFixed{raw: q, scale: scale}
}

// String renders the value in decimal form.
func (h *HpFixed) String() string {
	return h.Rat().FloatString(int(h.scale))
}

// hpFixedWire is HpFixed's RLP wire shape: unlike its in-memory form, every
// field here is exported so rlp's reflective encoder captures the value.
// Without this, rlp would silently encode HpFixed as an empty struct (it
// only walks exported fields) and the transaction digest would fail to bind
// to the amount at all — so this is load-bearing for spec §6's canonical
// digest, not cosmetic.
type hpFixedWire struct {
	Raw   *big.Int
	Scale uint8
}

// EncodeRLP implements rlp.Encoder.
func (h *HpFixed) EncodeRLP(w io.Writer) error {
	raw := h.raw
	if raw == nil {
		raw = new(big.Int)
	}
	return rlp.Encode(w, hpFixedWire{Raw: raw, Scale: h.scale})
}

// DecodeRLP implements rlp.Decoder.
func (h *HpFixed) DecodeRLP(s *rlp.Stream) error {
	var w hpFixedWire
	if err := s.Decode(&w); err != nil {
		return err
	}
	h.raw = w.Raw
	h.scale = w.Scale
	return nil
}

// Rescale converts h to a different scale, flooring any lost precision.
func (h *HpFixed) Rescale(newScale uint8) *HpFixed {
	if newScale == h.scale {
		return h.Clone()
	}
	if newScale > h.scale {
		raw := new(big.Int).Mul(h.raw, pow10(newScale-h.scale))
		return &HpFixed{raw: raw, scale: newScale}
	}
	raw := new(big.Int).Div(h.raw, pow10(h.scale-newScale))
	return &HpFixed{raw: raw, scale: newScale}
}
