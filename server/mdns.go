package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hashicorp/mdns"
)

// Service types screens look up to find the server on the LAN.
const (
	MDNSServiceWS  = "_signage-ws._tcp"
	MDNSServiceTCP = "_signage-tcp._tcp"
)

// MDNSAdvertiser announces the screen transports over mDNS so screens
// on the same network need no configured server address.
type MDNSAdvertiser struct {
	servers []*mdns.Server
}

// AdvertiseMDNS publishes one mDNS service per transport port. A port
// of 0 skips that transport.
func AdvertiseMDNS(instance string, wsPort, tcpPort int) (*MDNSAdvertiser, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "signaged"
	}

	a := &MDNSAdvertiser{}
	announce := func(serviceType string, port int) error {
		service, err := mdns.NewMDNSService(instance, serviceType, "", "", port, nil,
			[]string{"signaged screen sync server"})
		if err != nil {
			return fmt.Errorf("failed to build mDNS service %s: %w", serviceType, err)
		}
		srv, err := mdns.NewServer(&mdns.Config{Zone: service})
		if err != nil {
			return fmt.Errorf("failed to start mDNS server %s: %w", serviceType, err)
		}
		a.servers = append(a.servers, srv)
		slog.Info("Advertising over mDNS", "service", serviceType, "port", port, "host", host)
		return nil
	}

	if wsPort > 0 {
		if err := announce(MDNSServiceWS, wsPort); err != nil {
			a.Shutdown()
			return nil, err
		}
	}
	if tcpPort > 0 {
		if err := announce(MDNSServiceTCP, tcpPort); err != nil {
			a.Shutdown()
			return nil, err
		}
	}
	return a, nil
}

func (a *MDNSAdvertiser) Shutdown() {
	for _, srv := range a.servers {
		srv.Shutdown()
	}
	a.servers = nil
}
