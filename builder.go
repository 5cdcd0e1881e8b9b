package wyvern

import (
	"log/slog"
	"math/rand/v2"

	"github.com/df-mc/dragonfly/server/world"
)

// Builder configures a Manager before initialization.
type Builder struct {
	bundles    []func(*Manager) *Bundle
	tuning     *Tuning
	log        *slog.Logger
	manualTick bool
	seed       *uint64
	executor   func(w *world.World, fn func(World))
}

// NewBuilder creates a new builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Bundle adds a bundle to the builder.
func (b *Builder) Bundle(callback func(*Manager) *Bundle) *Builder {
	b.bundles = append(b.bundles, callback)
	return b
}

// Tuning sets the design parameters. DefaultTuning is used if unset.
func (b *Builder) Tuning(t Tuning) *Builder {
	b.tuning = &t
	return b
}

// Logger sets the logger. slog.Default is used if unset.
func (b *Builder) Logger(log *slog.Logger) *Builder {
	b.log = log
	return b
}

// ManualTick stops Init from starting the scheduler. Ticks are then driven
// with Manager.Tick.
func (b *Builder) ManualTick() *Builder {
	b.manualTick = true
	return b
}

// Seed makes the random source used for ambient music deterministic.
func (b *Builder) Seed(seed uint64) *Builder {
	b.seed = &seed
	return b
}

// Executor replaces the function that runs a world's share of a tick. The
// default executes fn inside a transaction of w.
func (b *Builder) Executor(exec func(w *world.World, fn func(World))) *Builder {
	b.executor = exec
	return b
}

// Init builds the manager and starts its scheduler unless ManualTick was set.
// It panics if a bundle contains an invalid system.
func (b *Builder) Init() *Manager {
	t := DefaultTuning()
	if b.tuning != nil {
		t = *b.tuning
	}
	log := b.log
	if log == nil {
		log = slog.Default()
	}
	var rng *rand.Rand
	if b.seed != nil {
		rng = rand.New(rand.NewPCG(*b.seed, *b.seed^0x9e3779b97f4a7c15))
	} else {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	m := newManager(&t, log, rng)
	if b.executor != nil {
		m.scheduler.exec = b.executor
	}

	var hooks []func(*Manager)
	for _, f := range b.bundles {
		bund := f(m)
		m.bundles = append(m.bundles, bund)
		hooks = append(hooks, bund.postInitHooks...)
	}

	if err := m.build(); err != nil {
		panic("wyvern: failed to build systems: " + err.Error())
	}

	if !b.manualTick {
		m.Start()
	}
	for _, hook := range hooks {
		hook(m)
	}
	return m
}
