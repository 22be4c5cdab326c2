package actorutil

import (
	"github.com/asynkron/protoactor-go/actor"
)

// ActorWithStates wraps a behavior whose receive functions are named states.
type ActorWithStates struct {
	Behavior actor.Behavior
	state    ActorState
}

type ActorState interface {
	Name() string
	Receive(actor.Context)
}

func NewActorWithStates() ActorWithStates {
	return ActorWithStates{Behavior: actor.NewBehavior()}
}

func (s *ActorWithStates) Become(state ActorState) {
	s.state = state
	s.Behavior.Become(state.Receive)
}

func (s *ActorWithStates) Receive(ctx actor.Context) {
	s.Behavior.Receive(ctx)
}

// StateName is the name of the current state, empty before the first Become.
func (s *ActorWithStates) StateName() string {
	if s.state == nil {
		return ""
	}
	return s.state.Name()
}
