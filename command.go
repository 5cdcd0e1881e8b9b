package wyvern

import (
	"maps"
	"slices"
	"strings"

	"github.com/df-mc/dragonfly/server/cmd"
	"github.com/df-mc/dragonfly/server/world"
)

// NewCommand returns the /wyvern command.
func NewCommand() cmd.Command {
	return cmd.New("wyvern", "Manage your dragon.", []string{"dragon"},
		statusCommand{},
		dismountCommand{},
		spawnCommand{},
		tierCommand{},
	)
}

type statusCommand struct {
	Sub cmd.SubCommand `cmd:"status"`
}

func (statusCommand) Run(src cmd.Source, o *cmd.Output, _ *world.Tx) {
	_, a := Command(src)
	if a == nil {
		o.Error("This command can only be used by players.")
		return
	}
	if owned := OwnedDragons(a); len(owned) > 0 {
		names := make([]string, 0, len(owned))
		for _, d := range owned {
			names = append(names, d.Name())
		}
		slices.Sort(names)
		o.Printf("Dragons: %s.", strings.Join(names, ", "))
	}
	dragon := RiddenDragon(a)
	if dragon == nil {
		o.Print("You are not riding a dragon.")
		return
	}
	tier := "neutral"
	if m := Get[Milestone](dragon); m != nil {
		tier = m.Tier
	}
	o.Printf("Riding %s (tier %s).", dragon.Name(), tier)

	st := Get[FlightState](dragon)
	if st == nil || !st.Flying() {
		o.Print("Grounded.")
		return
	}
	if st.InfiniteStamina() {
		o.Printf("Flying for %d ticks, stamina unlimited.", st.FlyingTicks)
		return
	}
	o.Printf("Flying for %d ticks, stamina %.0f/%.0f.", st.FlyingTicks, st.Stamina, a.manager.Tuning().MaxStamina(tierOf(dragon)))
}

type dismountCommand struct {
	Sub cmd.SubCommand `cmd:"dismount"`
}

func (dismountCommand) Run(src cmd.Source, o *cmd.Output, _ *world.Tx) {
	_, a := Command(src)
	if a == nil {
		o.Error("This command can only be used by players.")
		return
	}
	if RiddenDragon(a) == nil {
		o.Error("You are not riding a dragon.")
		return
	}
	Dispatch(a, dismountTask{})
}

type spawnCommand struct {
	Sub  cmd.SubCommand         `cmd:"spawn"`
	Name cmd.Optional[string]   `cmd:"name"`
	Tier cmd.Optional[tierEnum] `cmd:"tier"`
}

func (c spawnCommand) Run(src cmd.Source, o *cmd.Output, tx *world.Tx) {
	p, a := Command(src)
	if a == nil {
		o.Error("This command can only be used by players.")
		return
	}
	name, _ := c.Name.Load()
	tier, _ := c.Tier.Load()
	dragon := a.manager.SpawnDragon(tx, p.Position(), a, DragonConfig{Name: name, Tier: string(tier)})
	o.Printf("Spawned %s.", dragon.Name())
}

type tierCommand struct {
	Sub  cmd.SubCommand `cmd:"tier"`
	Tier tierEnum       `cmd:"tier"`
}

func (c tierCommand) Run(src cmd.Source, o *cmd.Output, _ *world.Tx) {
	_, a := Command(src)
	if a == nil {
		o.Error("This command can only be used by players.")
		return
	}
	if RiddenDragon(a) == nil {
		o.Error("You are not riding a dragon.")
		return
	}
	Dispatch(a, tierTask{tier: string(c.Tier)})
	o.Printf("Your dragon is now %s.", string(c.Tier))
}

// tierEnum lists the milestone tiers of the player's manager.
type tierEnum string

func (tierEnum) Type() string { return "DragonTier" }

func (tierEnum) Options(src cmd.Source) []string {
	_, a := Command(src)
	if a == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(a.manager.Tuning().Milestones))
}

// dismountTask takes the rider off its dragon.
type dismountTask struct {
	_ With[Riding]
}

func (dismountTask) Run(c *Context) {
	if dragon := RiddenDragon(c.Actor); dragon != nil {
		Dismount(c.World, dragon)
	}
}

// tierTask changes the tier of the rider's dragon. Stamina above the new
// maximum is cut on the next flight tick.
type tierTask struct {
	_    With[Riding]
	tier string
}

func (t tierTask) Run(c *Context) {
	if dragon := RiddenDragon(c.Actor); dragon != nil {
		Add(dragon, &Milestone{Tier: t.tier})
	}
}
