// ABOUTME: mDNS browsing for running monitor instances
// ABOUTME: Finds visualization endpoints advertised as _loopmon-viz._tcp
package discovery

import (
	"context"
	"log"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	serviceType  = "_loopmon-viz._tcp"
	queryTimeout = 3 * time.Second
)

// Instance describes a discovered monitor's visualization endpoint.
type Instance struct {
	Name string
	Host string
	Port int
}

// Browser repeatedly queries the local network for monitor instances.
type Browser struct {
	ctx       context.Context
	cancel    context.CancelFunc
	instances chan *Instance
}

// NewBrowser creates a stopped browser.
func NewBrowser() *Browser {
	ctx, cancel := context.WithCancel(context.Background())
	return &Browser{
		ctx:       ctx,
		cancel:    cancel,
		instances: make(chan *Instance, 10),
	}
}

// Start launches the browse loop.
func (b *Browser) Start() {
	go b.browseLoop()
}

// Instances returns the channel of discovered endpoints.
func (b *Browser) Instances() <-chan *Instance {
	return b.instances
}

// Stop ends browsing.
func (b *Browser) Stop() {
	b.cancel()
}

func (b *Browser) browseLoop() {
	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)

		go func() {
			for entry := range entries {
				if entry.AddrV4 == nil {
					continue
				}
				inst := &Instance{
					Name: entry.Name,
					Host: entry.AddrV4.String(),
					Port: entry.Port,
				}

				log.Printf("Discovered monitor: %s at %s:%d", inst.Name, inst.Host, inst.Port)

				select {
				case b.instances <- inst:
				case <-b.ctx.Done():
					return
				}
			}
		}()

		params := &mdns.QueryParam{
			Service: serviceType,
			Domain:  "local",
			Timeout: queryTimeout,
			Entries: entries,
		}

		mdns.Query(params)
		close(entries)
	}
}
