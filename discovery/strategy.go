package discovery

import "math/rand/v2"

// Strategy chooses among the eligible instances of a service.
type Strategy string

const (
	// StrategyRoundRobin picks the instance with the fewest recorded
	// requests, which evens out load without a rotating cursor.
	StrategyRoundRobin Strategy = "round_robin"
	// StrategyWeighted draws instances in proportion to their weights.
	StrategyWeighted Strategy = "weighted"
	// StrategyLeastConnections picks the fewest successful requests.
	StrategyLeastConnections Strategy = "least_connections"
)

var strategyNames = []string{
	string(StrategyRoundRobin),
	string(StrategyWeighted),
	string(StrategyLeastConnections),
}

// candidate is an eligible instance together with its counters.
type candidate struct {
	inst    *ServiceInstance
	metrics *ServiceMetrics
}

// pick applies s to a non-empty candidate list. Ties go to the earliest
// registered instance.
func pick(s Strategy, cands []candidate, r *rand.Rand) *ServiceInstance {
	switch s {
	case StrategyWeighted:
		return pickWeighted(cands, r)
	case StrategyLeastConnections:
		return pickMin(cands, func(m *ServiceMetrics) int64 { return m.RequestCount - m.ErrorCount })
	default:
		return pickMin(cands, func(m *ServiceMetrics) int64 { return m.RequestCount })
	}
}

func pickMin(cands []candidate, score func(*ServiceMetrics) int64) *ServiceInstance {
	best := 0
	bestScore := score(cands[0].metrics)
	for i := 1; i < len(cands); i++ {
		if s := score(cands[i].metrics); s < bestScore {
			best, bestScore = i, s
		}
	}
	return cands[best].inst
}

func pickWeighted(cands []candidate, r *rand.Rand) *ServiceInstance {
	total := 0
	for _, c := range cands {
		total += weightOf(c.inst)
	}
	n := r.IntN(total)
	for _, c := range cands {
		n -= weightOf(c.inst)
		if n < 0 {
			return c.inst
		}
	}
	return cands[len(cands)-1].inst
}

func weightOf(inst *ServiceInstance) int {
	if inst.Weight <= 0 {
		return 1
	}
	return inst.Weight
}
