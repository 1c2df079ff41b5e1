package cluster

import (
	"fmt"

	"github.com/Iron-Ham/heist/internal/errors"
	"github.com/Iron-Ham/heist/internal/logging"
)

// Discover returns every server reachable from home, breadth first, home
// itself included.
func Discover(s Scanner, home string) ([]Server, error) {
	queue := []string{home}
	queued := map[string]bool{home: true}
	var servers []Server

	for len(queue) > 0 {
		hostname := queue[0]
		queue = queue[1:]

		neighbours, err := s.Scan(hostname)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", hostname, err)
		}
		for _, next := range neighbours {
			if !queued[next] {
				queued[next] = true
				queue = append(queue, next)
			}
		}

		server, err := s.Server(hostname)
		if err != nil {
			if errors.Is(err, errors.ErrServerIncomplete) {
				return nil, errors.NewDiscoveryError("target properties not defined", err).WithHost(hostname)
			}
			return nil, fmt.Errorf("get server %s: %w", hostname, err)
		}
		servers = append(servers, server)
	}
	return servers, nil
}

// Rooting configures Root.
type Rooting struct {
	// Home is the host holding the port opener programs.
	Home string
	// Files are copied to every rooted server.
	Files []string
	// Exclude skips matching servers.
	Exclude *Filter
	Logger  *logging.Logger
}

// Root gains admin rights where possible and copies the worker programs.
// servers is updated in place so later target selection sees new admin
// rights. It returns the servers that can run workers.
func Root(r Rooter, o Oracle, player Player, servers []Server, opts Rooting) ([]Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	var hosts []Server
	for i := range servers {
		server := &servers[i]
		if server.MaxRAM == 0 {
			continue
		}
		if opts.Exclude.Excluded(server.Hostname) {
			continue
		}

		// Purchased servers start with admin rights regardless of ports.
		if !server.HasAdminRights {
			if server.NumOpenPortsRequired >= len(Ports) {
				return nil, errors.NewDiscoveryError(
					fmt.Sprintf("requires %d open ports", server.NumOpenPortsRequired),
					errors.ErrPortsUnreachable,
				).WithHost(server.Hostname)
			}
			if server.RequiredHackingSkill > player.Hacking {
				continue
			}

			anyClosed := false
			for p := server.NumOpenPortsRequired; p >= 0; p-- {
				port := Ports[p]
				if port.IsOpen(*server) {
					continue
				}
				if !o.FileExists(port.File, opts.Home) {
					anyClosed = true
					break
				}
				if err := r.OpenPort(port.File, server.Hostname); err != nil {
					return nil, fmt.Errorf("run %s on %s: %w", port.File, server.Hostname, err)
				}
			}
			if anyClosed {
				continue
			}
			server.HasAdminRights = true
			logger.Info("rooted server", "host", server.Hostname)
		}

		if err := r.Copy(opts.Files, server.Hostname); err != nil {
			return nil, errors.NewDiscoveryError("cannot copy worker programs", err).WithHost(server.Hostname)
		}
		hosts = append(hosts, *server)
	}
	return hosts, nil
}
