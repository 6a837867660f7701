package flowgraph

import "fmt"

// subgraphNode adapts a compiled graph into a NodeFunc. The child loop runs
// from its own entry on the parent's state; every update it applies is
// merged, in application order, into the single update handed back to the
// parent.
func subgraphNode[S State[S, U], U Update[U]](id string, sub *CompiledGraph[S, U]) NodeFunc[S, U] {
	return func(ctx Context, state S) (U, error) {
		ec := derive(ctx, "", nil)

		cfg := defaultRunConfig()
		if ec.run != nil {
			cfg = *ec.run
		}
		// Subgraphs never pause; the parent owns the checkpoint.
		cfg.store = nil

		var merged U
		seen := false
		collect := func(u U) {
			if !seen {
				merged, seen = u, true
				return
			}
			merged = merged.Merge(u)
		}

		if _, err := sub.loop(ec, ec, state, sub.entryPoint, &cfg, collect); err != nil {
			var zero U
			return zero, fmt.Errorf("subgraph %s: %w", id, err)
		}
		return merged, nil
	}
}
