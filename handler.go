package wyvern

import (
	"fmt"
	"reflect"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/entity"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
)

// handlerMeta holds the event methods of a registered event handler.
type handlerMeta struct {
	meta    *SystemMeta
	bundle  *Bundle
	handler reflect.Value
	events  map[reflect.Type]int
}

// ActorHandler is the player.Handler of a tracked player. It records rider
// input into the player's InputState and turns interactions into tasks. It
// never touches dragon state directly, so a player event can never re-enter
// a tick that is iterating the same actors.
type ActorHandler struct {
	player.NopHandler
	actor *Actor
}

// NewHandler creates the player.Handler for a tracked player.
func NewHandler(a *Actor) player.Handler {
	return &ActorHandler{actor: a}
}

// Actor returns the actor the handler belongs to.
func (h *ActorHandler) Actor() *Actor {
	return h.actor
}

var _ player.Handler = (*ActorHandler)(nil)

// riding returns the rider's input state if the player sits on a dragon.
func (h *ActorHandler) riding() (*InputState, bool) {
	a := h.actor
	if a.Closed() || RiddenDragon(a) == nil {
		return nil, false
	}
	return GetOrAdd(a, newInputState), true
}

// HandleMove records the movement the rider attempts, relative to where it
// looks, as the steering input. The seat loop puts the rider back in the
// saddle every tick, so the move is not cancelled; cancelling would also
// revert the rider's rotation. While flight holds the lateral movement
// control the vector only steers; the seat loop does not walk on it.
func (h *ActorHandler) HandleMove(ctx *player.Context, newPos mgl64.Vec3, newRot cube.Rotation) {
	in, ok := h.riding()
	if !ok {
		return
	}
	delta := flatten(newPos.Sub(ctx.Val().Position()))
	if delta.Len() < 1e-3 {
		return
	}
	fwd := normalize(flatten(newRot.Vec3()))
	right := mgl64.Vec3{-fwd[2], 0, fwd[0]}
	d := normalize(delta)
	in.Move = mgl64.Vec2{d.Dot(right), d.Dot(fwd)}
	in.MoveTick = max(h.actor.manager.TickNumber(), 1)
}

// HandleJump records a jump press. Presses are dropped while flight holds
// the jump control.
func (h *ActorHandler) HandleJump(*player.Player) {
	if in, ok := h.riding(); ok && in.Permission(InputJump) {
		in.JumpTick = max(h.actor.manager.TickNumber(), 1)
	}
}

// HandleToggleSneak asks the flight loop to dismount the rider.
func (h *ActorHandler) HandleToggleSneak(_ *player.Context, after bool) {
	in, ok := h.riding()
	if !ok {
		return
	}
	in.Sneak = after
	if after {
		in.DismountRequested = true
	}
}

// HandleItemUseOnEntity tames or mounts a dragon.
func (h *ActorHandler) HandleItemUseOnEntity(ctx *player.Context, e world.Entity) {
	dragon := h.actor.manager.ActorByHandle(e.H())
	if dragon == nil || !Has[Dragon](dragon) {
		return
	}
	ctx.Cancel()
	if in := Get[InputState](h.actor); in != nil && !in.Permission(InputMount) {
		return
	}
	Dispatch(h.actor, interactTask{dragon: dragon})
}

// HandlePunchAir makes the ridden dragon attack.
func (h *ActorHandler) HandlePunchAir(*player.Context) {
	if _, ok := h.riding(); ok {
		Dispatch(h.actor, meleeTask{})
	}
}

// HandleAttackEntity replaces the rider's own attack with the dragon's.
func (h *ActorHandler) HandleAttackEntity(ctx *player.Context, _ world.Entity, _, _ *float64, _ *bool) {
	if _, ok := h.riding(); ok {
		ctx.Cancel()
		Dispatch(h.actor, meleeTask{})
	}
}

// HandleItemUse makes the ridden dragon fire a volley.
func (h *ActorHandler) HandleItemUse(*player.Context) {
	if _, ok := h.riding(); ok {
		Dispatch(h.actor, rangedTask{})
	}
}

// HandleHurt cancels fall damage while riding.
func (h *ActorHandler) HandleHurt(ctx *player.Context, _ *float64, _ bool, _ *time.Duration, src world.DamageSource) {
	if _, fall := src.(entity.FallDamageSource); !fall {
		return
	}
	if _, ok := h.riding(); ok {
		ctx.Cancel()
	}
}

// HandleChangeWorld re-indexes the actor under its new world.
func (h *ActorHandler) HandleChangeWorld(_ *player.Player, _, after *world.World) {
	h.actor.manager.MoveActor(h.actor, after)
}

// HandleQuit reaps the actor. A dragon it was riding loses its rider on the
// next tick.
func (h *ActorHandler) HandleQuit(*player.Player) {
	h.actor.manager.Remove(h.actor.id)
}

// Dispatch delivers a custom event to every registered handler method that
// takes the event's type. Handlers whose With/Without filters reject the
// actor are skipped.
func (a *Actor) Dispatch(event any) {
	if a.manager == nil || a.closed.Load() {
		return
	}
	eventType := reflect.TypeOf(event)
	for _, hm := range a.manager.handlers {
		idx, ok := hm.events[eventType]
		if !ok || !a.canRun(hm.meta) {
			continue
		}
		a.manager.callHandler(hm, idx, event)
	}
}

func (m *Manager) callHandler(hm *handlerMeta, idx int, event any) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("wyvern: panic in handler", "handler", hm.meta.Name, "panic", r)
		}
	}()
	hm.handler.Method(idx).Call([]reflect.Value{reflect.ValueOf(event)})
}

// registerHandler scans h for single-argument exported methods.
func (m *Manager) registerHandler(h any, bundle *Bundle) error {
	meta, err := analyzeSystem(h)
	if err != nil {
		return err
	}
	v := reflect.ValueOf(h)
	t := v.Type()

	events := make(map[reflect.Type]int)
	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i)
		if method.Type.NumIn() != 2 || method.Type.NumOut() != 0 {
			continue
		}
		events[method.Type.In(1)] = i
	}
	if len(events) == 0 {
		return fmt.Errorf("handler %s has no event methods", meta.Name)
	}

	m.handlers = append(m.handlers, &handlerMeta{
		meta:    meta,
		bundle:  bundle,
		handler: v,
		events:  events,
	})
	return nil
}
