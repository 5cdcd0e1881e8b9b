package wyvern

import (
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/player/skin"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// DragonConfig describes a dragon to spawn.
type DragonConfig struct {
	// Name is shown above the dragon. Defaults to "Dragon".
	Name string
	// Tier is the milestone tier. Empty leaves the dragon neutral.
	Tier string
	// Skin defaults to a blank 64x64 skin.
	Skin skin.Skin
}

// SpawnDragon adds a dragon to the world of tx and tracks it. A non-nil
// owner tames the dragon.
func (m *Manager) SpawnDragon(tx *world.Tx, pos mgl64.Vec3, owner *Actor, cfg DragonConfig) *Actor {
	if cfg.Name == "" {
		cfg.Name = "Dragon"
	}
	if cfg.Skin.Bounds().Empty() {
		cfg.Skin = skin.New(64, 64)
	}
	id := uuid.New()
	opts := world.EntitySpawnOpts{Position: pos, ID: id, NameTag: cfg.Name}
	handle := opts.New(player.Type, player.Config{
		Name:     cfg.Name,
		UUID:     id,
		Skin:     cfg.Skin,
		Position: pos,
	})
	tx.AddEntity(handle)

	a := m.Track(id, cfg.Name, handle, tx.World())
	Add(a, &Dragon{Type: DragonType})
	if cfg.Tier != "" {
		Add(a, &Milestone{Tier: cfg.Tier})
	}
	if owner != nil {
		if err := Tame(a, owner); err != nil {
			m.log.Warn("wyvern: tame spawned dragon", "dragon", a.Name(), "err", err)
		}
	}
	m.log.Debug("wyvern: dragon spawned", "dragon", a.Name(), "id", id, "pos", pos)
	return a
}
