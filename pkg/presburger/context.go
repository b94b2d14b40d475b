package presburger

import log "github.com/sirupsen/logrus"

// Context is the exclusive owner of every Set and Relation value produced
// for one Program; it is not safe for concurrent use (SPEC_FULL.md §5). A
// Program holds exactly one Context for its lifetime.
type Context struct {
	log *log.Entry
}

// NewContext constructs a fresh façade context. name is attached to every
// log entry emitted through this context, so diagnostics from several
// Programs in the same process can be told apart.
func NewContext(name string) *Context {
	return &Context{log: log.WithField("context", name)}
}

// Log returns the structured logger bound to this context.
func (c *Context) Log() *log.Entry {
	return c.log
}
