package wyvern

import (
	"github.com/df-mc/dragonfly/server/cmd"
)

// Bundle groups the loops, event handlers and commands of one feature.
type Bundle struct {
	name string

	handlers []any
	loops    []loopRegistration
	commands []cmd.Command

	postInitHooks []func(*Manager)
}

type loopRegistration struct {
	system Runnable
	every  int
	stage  Stage
}

// NewBundle creates an empty bundle.
func NewBundle(name string) *Bundle {
	return &Bundle{name: name}
}

// Name returns the bundle name.
func (b *Bundle) Name() string {
	return b.name
}

// Handler registers an event handler. Every exported method taking exactly
// one argument receives events of that argument's type from Actor.Dispatch.
// Handlers may filter actors with With[T] and Without[T] fields.
func (b *Bundle) Handler(h any) *Bundle {
	b.handlers = append(b.handlers, h)
	return b
}

// Loop registers a system that runs every n ticks during stage. n <= 1 runs
// every tick.
func (b *Bundle) Loop(sys Runnable, every int, stage Stage) *Bundle {
	b.loops = append(b.loops, loopRegistration{system: sys, every: every, stage: stage})
	return b
}

// Command registers a dragonfly command when the bundle is built.
func (b *Bundle) Command(c cmd.Command) *Bundle {
	b.commands = append(b.commands, c)
	return b
}

// PostInit registers a hook run once the manager is ready.
func (b *Bundle) PostInit(hook func(*Manager)) *Bundle {
	b.postInitHooks = append(b.postInitHooks, hook)
	return b
}

// Build returns a callback usable with Builder.Bundle.
func (b *Bundle) Build() func(*Manager) *Bundle {
	return func(*Manager) *Bundle {
		return b
	}
}

// build analyses the bundle's systems and registers them with m.
func (b *Bundle) build(m *Manager) error {
	for _, h := range b.handlers {
		if err := m.registerHandler(h, b); err != nil {
			return err
		}
	}
	for _, reg := range b.loops {
		meta, err := analyzeSystem(reg.system)
		if err != nil {
			return err
		}
		meta.Stage = reg.stage
		m.scheduler.addLoop(meta, reg.system, reg.every)
	}
	for _, c := range b.commands {
		cmd.Register(c)
	}
	return nil
}
