package wyvern

import (
	"errors"
	"fmt"
	"math"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/go-gl/mathgl/mgl64"
)

// ErrOutOfBounds is returned by World.Block for positions outside the world range.
var ErrOutOfBounds = errors.New("wyvern: block position out of bounds")

// GroundContact is the result of a downward probe.
type GroundContact struct {
	// Found is true if a block outside the non-solid set lies within the probe depth.
	Found bool
	// Block is the identifier of the contact block.
	Block string
	// Pos is the position of the contact block.
	Pos cube.Pos
	// Offset is the vertical offset from the feet block, 0 or negative.
	Offset int
	// Distance is |Offset|, or +Inf when nothing was found.
	Distance float64
}

// Probe scans downwards from the block containing pos, offset 0 through
// -maxDepth, and reports the first block that is not in the non-solid set.
// Failed lookups are skipped and never abort the scan.
func Probe(w World, pos mgl64.Vec3, maxDepth int) GroundContact {
	feet := cube.PosFromVec3(pos)
	for offset := 0; offset >= -maxDepth; offset-- {
		at := feet.Add(cube.Pos{0, offset, 0})
		name, err := lookupBlock(w, at)
		if err != nil || name == "" || IsNonSolid(name) {
			continue
		}
		return GroundContact{
			Found:    true,
			Block:    name,
			Pos:      at,
			Offset:   offset,
			Distance: float64(-offset),
		}
	}
	return GroundContact{Distance: math.Inf(1)}
}

// Grounded reports whether a solid block lies within depth beneath pos.
func Grounded(w World, pos mgl64.Vec3, depth int) bool {
	return Probe(w, pos, depth).Found
}

// lookupBlock shields the scan from hosts that panic on bad coordinates.
func lookupBlock(w World, pos cube.Pos) (name string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("block lookup at %v: %v", pos, r)
		}
	}()
	return w.Block(pos)
}

// IsNonSolid reports whether a block is ignored when looking for ground.
func IsNonSolid(name string) bool {
	_, ok := nonSolidBlocks[name]
	return ok
}

// nonSolidBlocks is the set of blocks a creature cannot stand on: air, fluids,
// vegetation, rails, pressure plates, light blocks, fire and torches, tripwire
// and redstone components.
var nonSolidBlocks = func() map[string]struct{} {
	names := []string{
		// Air.
		"minecraft:air",
		"minecraft:cave_air",
		"minecraft:void_air",
		"minecraft:structure_void",

		// Fluids.
		"minecraft:water",
		"minecraft:flowing_water",
		"minecraft:lava",
		"minecraft:flowing_lava",
		"minecraft:bubble_column",

		// Vegetation.
		"minecraft:short_grass",
		"minecraft:tall_grass",
		"minecraft:fern",
		"minecraft:large_fern",
		"minecraft:deadbush",
		"minecraft:seagrass",
		"minecraft:kelp",
		"minecraft:vine",
		"minecraft:weeping_vines",
		"minecraft:twisting_vines",
		"minecraft:cave_vines",
		"minecraft:glow_lichen",
		"minecraft:sweet_berry_bush",
		"minecraft:sugar_cane",
		"minecraft:wheat",
		"minecraft:carrots",
		"minecraft:potatoes",
		"minecraft:beetroot",
		"minecraft:dandelion",
		"minecraft:poppy",
		"minecraft:blue_orchid",
		"minecraft:allium",
		"minecraft:azure_bluet",
		"minecraft:red_tulip",
		"minecraft:orange_tulip",
		"minecraft:white_tulip",
		"minecraft:pink_tulip",
		"minecraft:oxeye_daisy",
		"minecraft:cornflower",
		"minecraft:lily_of_the_valley",
		"minecraft:wither_rose",
		"minecraft:torchflower",
		"minecraft:sunflower",
		"minecraft:lilac",
		"minecraft:rose_bush",
		"minecraft:peony",
		"minecraft:pink_petals",
		"minecraft:brown_mushroom",
		"minecraft:red_mushroom",
		"minecraft:crimson_roots",
		"minecraft:warped_roots",
		"minecraft:nether_sprouts",
		"minecraft:oak_sapling",
		"minecraft:spruce_sapling",
		"minecraft:birch_sapling",
		"minecraft:jungle_sapling",
		"minecraft:acacia_sapling",
		"minecraft:dark_oak_sapling",
		"minecraft:cherry_sapling",

		// Rails.
		"minecraft:rail",
		"minecraft:golden_rail",
		"minecraft:detector_rail",
		"minecraft:activator_rail",

		// Pressure plates.
		"minecraft:stone_pressure_plate",
		"minecraft:wooden_pressure_plate",
		"minecraft:spruce_pressure_plate",
		"minecraft:birch_pressure_plate",
		"minecraft:jungle_pressure_plate",
		"minecraft:acacia_pressure_plate",
		"minecraft:dark_oak_pressure_plate",
		"minecraft:mangrove_pressure_plate",
		"minecraft:cherry_pressure_plate",
		"minecraft:bamboo_pressure_plate",
		"minecraft:crimson_pressure_plate",
		"minecraft:warped_pressure_plate",
		"minecraft:polished_blackstone_pressure_plate",
		"minecraft:light_weighted_pressure_plate",
		"minecraft:heavy_weighted_pressure_plate",

		// Light blocks.
		"minecraft:light_block",

		// Fire and torches.
		"minecraft:fire",
		"minecraft:soul_fire",
		"minecraft:torch",
		"minecraft:soul_torch",
		"minecraft:redstone_torch",
		"minecraft:unlit_redstone_torch",

		// Tripwire.
		"minecraft:trip_wire",
		"minecraft:tripwire_hook",

		// Redstone components.
		"minecraft:redstone_wire",
		"minecraft:lever",
		"minecraft:unpowered_repeater",
		"minecraft:powered_repeater",
		"minecraft:unpowered_comparator",
		"minecraft:powered_comparator",
		"minecraft:stone_button",
		"minecraft:wooden_button",
		"minecraft:spruce_button",
		"minecraft:birch_button",
		"minecraft:jungle_button",
		"minecraft:acacia_button",
		"minecraft:dark_oak_button",
		"minecraft:mangrove_button",
		"minecraft:cherry_button",
		"minecraft:bamboo_button",
		"minecraft:crimson_button",
		"minecraft:warped_button",
		"minecraft:polished_blackstone_button",
	}
	m := make(map[string]struct{}, len(names)+16)
	for _, n := range names {
		m[n] = struct{}{}
	}
	// Bedrock splits the light block into one identifier per level.
	for level := range 16 {
		m[fmt.Sprintf("minecraft:light_block_%d", level)] = struct{}{}
	}
	return m
}()
