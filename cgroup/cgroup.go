// Package cgroup manages per-run cgroup v1 hierarchies for cpu, cpuacct and
// memory accounting and limits.
package cgroup

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	sberrors "judgesandbox/errors"
	"judgesandbox/logging"
)

// Controller names a cgroup v1 controller hierarchy this package manages.
type Controller string

const (
	CPU     Controller = "cpu"
	CPUAcct Controller = "cpuacct"
	Memory  Controller = "memory"
)

// DefaultRoot is the conventional cgroup v1 mount point.
const DefaultRoot = "/sys/fs/cgroup"

// Context owns a UUIDv4-named leaf directory under each controller it has
// initialized. The zero value is not usable; create one with New.
type Context struct {
	root string
	uuid string

	mu          sync.Mutex
	initialized map[Controller]bool
}

// New creates a context rooted at root (DefaultRoot if empty) with a fresh
// UUIDv4 leaf name. No controller directories are created until
// Initialize is called.
func New(root string) *Context {
	if root == "" {
		root = DefaultRoot
	}
	return &Context{
		root:        root,
		uuid:        uuid.New().String(),
		initialized: make(map[Controller]bool),
	}
}

// UUID returns the leaf directory name shared by every controller this
// context manages.
func (c *Context) UUID() string {
	return c.uuid
}

// Path returns the leaf directory for the given controller, regardless of
// whether it has been initialized.
func (c *Context) Path(ctrl Controller) string {
	return filepath.Join(c.root, string(ctrl), c.uuid)
}

// Initialize creates the leaf directories for the given controllers
// concurrently. It is idempotent: controllers already initialized are
// skipped.
func (c *Context) Initialize(ctx context.Context, controllers ...Controller) error {
	var pending []Controller
	c.mu.Lock()
	for _, ctrl := range controllers {
		if !c.initialized[ctrl] {
			pending = append(pending, ctrl)
		}
	}
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	g, _ := errgroup.WithContext(ctx)
	for _, ctrl := range pending {
		ctrl := ctrl
		g.Go(func() error {
			if err := os.MkdirAll(c.Path(ctrl), 0755); err != nil {
				return sberrors.WrapWithDetail(err, sberrors.ErrIO, "cgroup.Initialize", string(ctrl))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	for _, ctrl := range pending {
		c.initialized[ctrl] = true
	}
	c.mu.Unlock()
	return nil
}

// IsInitialized reports whether a controller's leaf directory has been
// created.
func (c *Context) IsInitialized(ctrl Controller) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized[ctrl]
}

// AddProcess attaches pid to cgroup.procs of every initialized controller.
func (c *Context) AddProcess(pid int) error {
	return c.writePIDTo("cgroup.procs", pid)
}

// AddTask attaches pid (a thread id) to tasks of every initialized
// controller.
func (c *Context) AddTask(pid int) error {
	return c.writePIDTo("tasks", pid)
}

func (c *Context) writePIDTo(file string, pid int) error {
	c.mu.Lock()
	controllers := make([]Controller, 0, len(c.initialized))
	for ctrl, ok := range c.initialized {
		if ok {
			controllers = append(controllers, ctrl)
		}
	}
	c.mu.Unlock()

	value := []byte(strconv.Itoa(pid))
	for _, ctrl := range controllers {
		path := filepath.Join(c.Path(ctrl), file)
		if err := os.WriteFile(path, value, 0644); err != nil {
			return sberrors.WrapWithDetail(err, sberrors.ErrIO, "cgroup.writePIDTo", path)
		}
	}
	return nil
}

// Close removes every initialized leaf directory. Removal is best-effort:
// a non-empty directory (processes still attached) logs a warning instead
// of returning an error, leaving the directory for an external cleaner to
// reap.
func (c *Context) Close() {
	c.mu.Lock()
	controllers := make([]Controller, 0, len(c.initialized))
	for ctrl, ok := range c.initialized {
		if ok {
			controllers = append(controllers, ctrl)
		}
	}
	c.initialized = make(map[Controller]bool)
	c.mu.Unlock()

	for _, ctrl := range controllers {
		path := c.Path(ctrl)
		if err := os.Remove(path); err != nil {
			logging.Warn("cgroup leaf directory not removed", "path", path, "error", err)
		}
	}
}
