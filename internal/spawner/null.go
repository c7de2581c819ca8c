package spawner

import (
	"fmt"

	"spotengine/internal/model"
)

// NullSpawner takes everything home and spawns nothing: the simplest
// policy, suitable for a trader that is not redistributing proceeds into
// counter-fragments at all.
type NullSpawner struct{}

func (NullSpawner) ComputeResultingFragments(f model.Fragment, order model.Order, _ OrderLookup) (Result, error) {
	switch f.Side {
	case model.Sell:
		return Result{TakenHome: f.BaseAmount.Mul(order.ExecutionRate)}, nil
	case model.Buy:
		return Result{TakenHome: f.BaseAmount}, nil
	default:
		return Result{}, fmt.Errorf("spawner: invalid side %v", f.Side)
	}
}
