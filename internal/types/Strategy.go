/*

This file contains the strategy tiers a participant can pick. The tier decides two
independent things: how much of the pool the participant pulls toward the secondary
destination, and how their epoch performance is multiplied when points are claimed.
Both lookup tables live next to the code that uses them (rebalance and scoring).

*/

package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Strategy is one of the three fixed risk tiers.
type Strategy uint8

const (
	StrategyConservative Strategy = iota
	StrategyBalanced
	StrategyAggressive

	// NumStrategies is the number of tiers; weight buckets are indexed by Strategy.
	NumStrategies = 3
)

// AllStrategies lists every tier in bucket order.
var AllStrategies = [NumStrategies]Strategy{StrategyConservative, StrategyBalanced, StrategyAggressive}

// IsValid reports whether s names a known tier.
func (s Strategy) IsValid() bool {
	return s < NumStrategies
}

func (s Strategy) String() string {
	switch s {
	case StrategyConservative:
		return "conservative"
	case StrategyBalanced:
		return "balanced"
	case StrategyAggressive:
		return "aggressive"
	default:
		return fmt.Sprintf("strategy(%d)", uint8(s))
	}
}

// ParseStrategy converts a tier name (case-insensitive) into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "conservative":
		return StrategyConservative, nil
	case "balanced":
		return StrategyBalanced, nil
	case "aggressive":
		return StrategyAggressive, nil
	default:
		return 0, ErrInvalidStrategy.Wrapf("unknown strategy %q", name)
	}
}

// MarshalJSON encodes the tier by name.
func (s Strategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a tier name.
func (s *Strategy) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParseStrategy(name)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
