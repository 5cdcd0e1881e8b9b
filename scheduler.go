package wyvern

import (
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// TicksPerSecond is the scheduler's tick rate, matching the server's.
const TicksPerSecond = 20

// Scheduler runs loops and tasks once per tick. Actors are grouped by world
// and each world's share of a tick runs in a single transaction, with stages
// executed in order. Worlds are processed in parallel.
type Scheduler struct {
	manager *Manager

	loops   [stageCount][]*loopState
	loopsMu sync.RWMutex

	workers    int
	workerPool chan func()
	workerWG   sync.WaitGroup

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	tickRate   time.Duration
	tickNumber atomic.Uint64

	// exec runs fn with the host view of w.
	exec func(w *world.World, fn func(World))
}

type loopState struct {
	meta   *SystemMeta
	system Runnable
	every  uint64
}

// due reports whether the loop runs on tick.
func (l *loopState) due(tick uint64) bool {
	return l.every <= 1 || tick%l.every == 0
}

func newScheduler(m *Manager) *Scheduler {
	workers := max(runtime.GOMAXPROCS(0), 1)
	s := &Scheduler{
		manager:    m,
		workers:    workers,
		workerPool: make(chan func(), workers*4),
		tickRate:   time.Second / TicksPerSecond,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	s.exec = s.execWorld
	return s
}

// execWorld runs fn inside a transaction of w and waits for it to finish.
// Actors tracked without a world run against a view that resolves nothing,
// so they miss every tick and are reaped.
func (s *Scheduler) execWorld(w *world.World, fn func(World)) {
	if w == nil {
		fn(detachedWorld{})
		return
	}
	<-w.Exec(func(tx *world.Tx) {
		fn(&txWorld{tx: tx, manager: s.manager})
	})
}

// Start begins the tick loop.
func (s *Scheduler) Start() {
	if s.running.Swap(true) {
		return
	}
	for range s.workers {
		s.workerWG.Add(1)
		go s.worker()
	}
	go s.tickLoop()
}

// Stop stops the tick loop and waits for the current tick to finish.
func (s *Scheduler) Stop() {
	if !s.running.Swap(false) {
		return
	}
	close(s.stopCh)
	<-s.doneCh

	close(s.workerPool)
	s.workerWG.Wait()
}

func (s *Scheduler) worker() {
	defer s.workerWG.Done()
	for fn := range s.workerPool {
		fn()
	}
}

func (s *Scheduler) tickLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.tickRate)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick advances the tick counter and runs every due loop and task.
func (s *Scheduler) tick() {
	tick := s.tickNumber.Add(1)

	groups := s.manager.groupedActors()
	tasks := make(map[*world.World][]*scheduledTask)
	for _, t := range s.manager.taskQueue.PopDue(tick) {
		if t.actor.closed.Load() {
			continue
		}
		w := t.actor.World()
		tasks[w] = append(tasks[w], t)
		if _, ok := groups[w]; !ok {
			groups[w] = nil
		}
	}

	s.loopsMu.RLock()
	loops := s.loops
	s.loopsMu.RUnlock()

	var wg sync.WaitGroup
	for w, actors := range groups {
		if len(actors) == 0 && len(tasks[w]) == 0 {
			continue
		}
		wg.Add(1)
		wTasks := tasks[w]
		job := func() {
			defer wg.Done()
			s.exec(w, func(host World) {
				s.runWorld(host, tick, actors, &loops, wTasks)
			})
		}
		if s.running.Load() {
			select {
			case s.workerPool <- job:
				continue
			default:
			}
		}
		job()
	}
	wg.Wait()

	s.reap(groups)
}

// runWorld runs one world's share of a tick.
func (s *Scheduler) runWorld(host World, tick uint64, actors []*Actor, loops *[stageCount][]*loopState, tasks []*scheduledTask) {
	live := make([]*Actor, 0, len(actors))
	for _, a := range actors {
		if a.closed.Load() {
			continue
		}
		if _, ok := host.Body(a.id); !ok {
			a.misses++
			continue
		}
		a.misses = 0
		live = append(live, a)
	}

	for stage := Before; stage < stageCount; stage++ {
		for _, loop := range loops[stage] {
			if !loop.due(tick) {
				continue
			}
			for _, a := range live {
				if a.closed.Load() || !a.canRun(loop.meta) {
					continue
				}
				s.run("loop", loop.meta.Name, &Context{Manager: s.manager, Actor: a, World: host, Tick: tick}, loop.system)
			}
		}
	}

	for _, t := range tasks {
		if t.cancelled.Load() || t.actor.closed.Load() {
			continue
		}
		t.actor.removeTask(t)
		if !t.actor.canRun(t.meta) {
			continue
		}
		s.run("task", t.meta.Name, &Context{Manager: s.manager, Actor: t.actor, World: host, Tick: tick}, t.task)
	}
}

// run executes one system. A panic is logged and swallowed so that one bad
// tick never stops the schedule.
func (s *Scheduler) run(kind, name string, c *Context, sys Runnable) {
	defer func() {
		if r := recover(); r != nil {
			s.manager.log.Error("wyvern: panic in "+kind,
				kind, name,
				"actor", c.Actor.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	sys.Run(c)
}

// reap removes actors the host failed to resolve for reapAfterMisses ticks.
func (s *Scheduler) reap(groups map[*world.World][]*Actor) {
	for _, actors := range groups {
		for _, a := range actors {
			if a.misses >= reapAfterMisses && !a.closed.Load() {
				s.manager.log.Debug("wyvern: reaping unresolved actor", "actor", a.id, "name", a.name)
				s.manager.Remove(a.id)
			}
		}
	}
}

// addLoop registers a loop.
func (s *Scheduler) addLoop(meta *SystemMeta, sys Runnable, every int) {
	s.loopsMu.Lock()
	defer s.loopsMu.Unlock()
	s.loops[meta.Stage] = append(s.loops[meta.Stage], &loopState{
		meta:   meta,
		system: sys,
		every:  uint64(max(every, 1)),
	})
}

// detachedWorld is the World of actors that belong to no dimension.
type detachedWorld struct{}

func (detachedWorld) Block(cube.Pos) (string, error) { return "", ErrOutOfBounds }
func (detachedWorld) EntitiesWithin(mgl64.Vec3, float64) []Body {
	return nil
}
func (detachedWorld) RaycastBlock(_, _ mgl64.Vec3, _ float64) (BlockHit, bool) {
	return BlockHit{}, false
}
func (detachedWorld) RaycastEntity(_, _ mgl64.Vec3, _, _ float64, _ func(Body) bool) (EntityHit, bool) {
	return EntityHit{}, false
}
func (detachedWorld) SpawnProjectile(Body, mgl64.Vec3, mgl64.Vec3) error {
	return ErrInvalidActor
}
func (detachedWorld) Body(uuid.UUID) (Body, bool)   { return nil, false }
func (detachedWorld) Rider(uuid.UUID) (Rider, bool) { return nil, false }
