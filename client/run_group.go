package client

import (
	"log"
	"sync"

	"github.com/oklog/run"
)

// RunGroup is used to group a list of clients and start/stop them
// currently a thin wrapper around run.Group that adds a Stop() function
type RunGroup struct {
	name     string
	debug    bool
	stop     chan struct{}
	stopOnce sync.Once
	group    run.Group
}

// NewRunGroup creates a new client group. Lifecycle events are logged when
// debug is set.
func NewRunGroup(name string, debug bool) *RunGroup {
	return &RunGroup{name: name, debug: debug, stop: make(chan struct{})}
}

// Add client to group. name is only used in lifecycle logs.
func (g *RunGroup) Add(name string, client RunStop) {
	g.group.Add(func() error {
		err := client.Run()
		g.logLS("LS: Exited: ", g.name, "/", name, ": ", err)
		return err
	}, func(err error) {
		client.Stop(err)
		g.logLS("LS: Shutdown: ", g.name, "/", name)
	})
}

// Run clients. This function blocks until error or stopped.
// all clients must be added before runner is started
func (g *RunGroup) Run() error {
	g.group.Add(func() error {
		<-g.stop
		return nil
	}, func(_ error) {
		g.Stop(nil)
	})

	err := g.group.Run()

	return err
}

// Stop clients
func (g *RunGroup) Stop(_ error) {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *RunGroup) logLS(m ...any) {
	if g.debug {
		log.Print(m...)
	}
}
