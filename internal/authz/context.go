package authz

import (
	"context"
	"sync"
)

type actorKey struct{}

type trailKey struct{}

// ContextWithActor stores the resolved actor on ctx.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored by ContextWithActor.
func ActorFromContext(ctx context.Context) (*Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(*Actor)
	return actor, ok && actor != nil
}

// Decision is the outcome of one Authorize call.
type Decision struct {
	Resource Resource
	Action   Action
	Allowed  bool
	Reason   string
}

// DecisionTrail collects the decisions made while serving one request so the
// transport layer can write a single activity record afterwards.
type DecisionTrail struct {
	mu        sync.Mutex
	decisions []Decision
}

func (t *DecisionTrail) add(d Decision) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decisions = append(t.decisions, d)
}

// Last returns the most recent decision.
func (t *DecisionTrail) Last() (Decision, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.decisions) == 0 {
		return Decision{}, false
	}
	return t.decisions[len(t.decisions)-1], true
}

// WithDecisionTrail attaches a fresh trail to ctx.
func WithDecisionTrail(ctx context.Context) (context.Context, *DecisionTrail) {
	trail := &DecisionTrail{}
	return context.WithValue(ctx, trailKey{}, trail), trail
}

// DecisionTrailFromContext returns the trail attached to ctx, if any.
func DecisionTrailFromContext(ctx context.Context) *DecisionTrail {
	trail, _ := ctx.Value(trailKey{}).(*DecisionTrail)
	return trail
}
