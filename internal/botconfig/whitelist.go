package botconfig

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Whitelist maps the parameters a bot allows automation to adjust to their bounds.
type Whitelist map[Param]Bounds

// DefaultWhitelist allows every parameter within its hard bounds.
func DefaultWhitelist() Whitelist {
	w := make(Whitelist, len(hardBounds))
	for p, b := range hardBounds {
		w[p] = b
	}
	return w
}

// Allows reports whether p may be adjusted.
func (w Whitelist) Allows(p Param) bool {
	_, ok := w[p]
	return ok
}

// Nudge moves current one step in direction (+1 or -1), clamped to the
// whitelist bounds. ok is false when p is not whitelisted, current lies
// outside the bounds, or the move would be a no-op at a bound.
func (w Whitelist) Nudge(p Param, current float64, direction int) (next float64, ok bool) {
	b, allowed := w[p]
	if !allowed || direction == 0 || !b.Contains(current) {
		return current, false
	}
	next = round(current + float64(sign(direction))*b.Step)
	// rounding must not widen the move past one step
	next = math.Min(math.Max(next, current-b.Step), current+b.Step)
	next = math.Min(math.Max(next, b.Min), b.Max)
	if math.Abs(next-current) < epsilon {
		return current, false
	}
	return next, true
}

// Validate checks that moving p from prev to next is a single bounded step
// inside the whitelist.
func (w Whitelist) Validate(p Param, prev, next float64) error {
	b, ok := w[p]
	if !ok {
		return fmt.Errorf("%s is not whitelisted", p)
	}
	if !b.Contains(next) {
		return fmt.Errorf("%s: %g outside [%g, %g]", p, next, b.Min, b.Max)
	}
	if math.Abs(next-prev) > b.Step+epsilon {
		return fmt.Errorf("%s: change %g exceeds step %g", p, next-prev, b.Step)
	}
	return nil
}

// Clone returns an independent copy.
func (w Whitelist) Clone() Whitelist {
	out := make(Whitelist, len(w))
	for p, b := range w {
		out[p] = b
	}
	return out
}

// UnmarshalYAML decodes a name-keyed table and narrows every entry to the
// parameter's hard bounds. Omitted fields keep the hard value; unknown names
// are rejected.
func (w *Whitelist) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]struct {
		Min  *float64 `yaml:"min"`
		Max  *float64 `yaml:"max"`
		Step *float64 `yaml:"step"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	out := make(Whitelist, len(raw))
	for name, r := range raw {
		p, err := ParseParam(name)
		if err != nil {
			return fmt.Errorf("whitelist: %w", err)
		}
		b := p.HardBounds()
		if r.Min != nil {
			b.Min = *r.Min
		}
		if r.Max != nil {
			b.Max = *r.Max
		}
		if r.Step != nil {
			b.Step = *r.Step
		}
		nb, err := b.narrow(p)
		if err != nil {
			return fmt.Errorf("whitelist: %w", err)
		}
		out[p] = nb
	}
	*w = out
	return nil
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	return 1
}
