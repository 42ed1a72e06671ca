package runcontext

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context pairs a context.Context with the logger of the scheduling run it belongs to. Functions
// deriving a new Context keep the logger unless they add fields to it.
type Context struct {
	context.Context
	Log *logrus.Entry
}

// Background logs through the standard logrus logger.
func Background() *Context {
	return New(context.Background(), logrus.NewEntry(logrus.StandardLogger()))
}

func New(ctx context.Context, log *logrus.Entry) *Context {
	return &Context{
		Context: ctx,
		Log:     log,
	}
}

func (c *Context) withContext(ctx context.Context) *Context {
	return New(ctx, c.Log)
}

func (c *Context) withLog(log *logrus.Entry) *Context {
	return New(c.Context, log)
}

func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent.Context)
	return parent.withContext(ctx), cancel
}

func WithLogField(parent *Context, key string, val interface{}) *Context {
	return parent.withLog(parent.Log.WithField(key, val))
}

func WithLogFields(parent *Context, fields logrus.Fields) *Context {
	return parent.withLog(parent.Log.WithFields(fields))
}

// WithInstance tags every log line with the instance being scheduled and its machine count.
func WithInstance(parent *Context, name string, machines int) *Context {
	return WithLogFields(parent, logrus.Fields{
		"instance": name,
		"machines": machines,
	})
}

// ErrGroup returns an errgroup whose context is cancelled on the first error, wrapped with the
// logger of ctx.
func ErrGroup(ctx *Context) (*errgroup.Group, *Context) {
	group, groupCtx := errgroup.WithContext(ctx)
	return group, ctx.withContext(groupCtx)
}
