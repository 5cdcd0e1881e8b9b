package wyvern

// Runnable is implemented by loops and tasks.
type Runnable interface {
	Run(c *Context)
}

// Context is passed to every loop and task run. It is only valid for the
// duration of the call.
type Context struct {
	// Manager is the runtime the system belongs to.
	Manager *Manager
	// Actor is the actor the system runs for.
	Actor *Actor
	// World is the host view of the actor's world for this tick.
	World World
	// Tick is the scheduler tick number.
	Tick uint64
}

// Tuning returns the manager's tuning.
func (c *Context) Tuning() *Tuning {
	return c.Manager.Tuning()
}

// Body resolves the context's actor in the current tick.
func (c *Context) Body() (Body, bool) {
	return c.World.Body(c.Actor.id)
}

// TaskFunc adapts a function to Runnable.
type TaskFunc func(c *Context)

// Run implements Runnable.
func (f TaskFunc) Run(c *Context) {
	f(c)
}
