package fsm

import (
	"context"
	"errors"
	"sort"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/tenantforge/internal/domain"
)

var _ domain.TransitionValidator = (*Validator)(nil)

// events folds domain.Transitions into looplab/fsm descriptors, one per
// event and destination, listing every source state that reaches it.
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range domain.Transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Validator applies lifecycle events with a throwaway looplab/fsm machine
// seeded with the tenant's stored status.
type Validator struct{}

// New creates an FSM-backed transition validator.
func New() *Validator {
	return &Validator{}
}

// Apply returns the status reached by event from current, or a
// *domain.TransitionError when the lifecycle does not allow it.
func (v *Validator) Apply(ctx context.Context, current domain.Status, event domain.Event) (domain.Status, error) {
	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return "", &domain.TransitionError{
				Event:   event,
				Current: current,
			}
		}
		return "", err
	}

	return domain.Status(machine.Current()), nil
}

// Available lists the events accepted from current, sorted by name.
func (v *Validator) Available(current domain.Status) []domain.Event {
	machine := loopfsm.NewFSM(string(current), events, nil)
	names := machine.AvailableTransitions()
	sort.Strings(names)

	out := make([]domain.Event, 0, len(names))
	for _, n := range names {
		out = append(out, domain.Event(n))
	}
	return out
}
