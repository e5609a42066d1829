package units

import "github.com/clover-storm/unit-simulator/internal/geom"

// ChargeState tracks the run-up of a unit with the Charge ability.
type ChargeState struct {
	Charging         bool      `json:"charging"`
	Charged          bool      `json:"charged"`
	Start            geom.Vec2 `json:"start"`
	Distance         float64   `json:"distance"`
	RequiredDistance float64   `json:"requiredDistance"`
}

func (c *ChargeState) Reset() {
	c.Charging = false
	c.Charged = false
	c.Start = geom.Zero
	c.Distance = 0
}

func (c *ChargeState) StartCharge(position geom.Vec2, required float64) {
	c.Charging = true
	c.Charged = false
	c.Start = position
	c.Distance = 0
	c.RequiredDistance = required
}

// UpdateDistance measures the straight-line run from the start point and
// latches Charged once the required distance is covered.
func (c *ChargeState) UpdateDistance(position geom.Vec2) {
	if !c.Charging {
		return
	}
	c.Distance = c.Start.Dist(position)
	if c.Distance >= c.RequiredDistance {
		c.Charged = true
	}
}

// Consume spends the charge after an attack.
func (c *ChargeState) Consume() {
	c.Reset()
}
