package client

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/mdns"
)

// DiscoveredService represents a signage server found on the LAN.
type DiscoveredService struct {
	ServiceName string
	Address     string
	Port        int
	Transport   string // "tcp" or "websocket"
	TXTRecords  []string
}

// discoverService discovers a signage service type using mDNS.
func discoverService(serviceType string, timeout time.Duration) (*DiscoveredService, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)

	go func() {
		defer close(entriesCh)
		mdns.Lookup(serviceType, entriesCh)
	}()

	select {
	case entry := <-entriesCh:
		if entry == nil {
			return nil, fmt.Errorf("no %s service found", serviceType)
		}

		var address string
		if entry.AddrV4 != nil {
			address = entry.AddrV4.String()
		} else if entry.AddrV6 != nil {
			address = fmt.Sprintf("[%s]", entry.AddrV6.String())
		} else {
			return nil, fmt.Errorf("no valid address found for service")
		}

		var transport string
		switch serviceType {
		case "_signage-tcp._tcp":
			transport = "tcp"
		case "_signage-ws._tcp":
			transport = "websocket"
		}

		service := &DiscoveredService{
			ServiceName: entry.Name,
			Address:     address,
			Port:        entry.Port,
			Transport:   transport,
			TXTRecords:  entry.InfoFields,
		}

		slog.Info("Discovered signage server",
			"service_name", service.ServiceName,
			"address", service.Address,
			"port", service.Port,
			"transport", service.Transport,
		)

		return service, nil

	case <-time.After(timeout):
		return nil, fmt.Errorf("mDNS discovery timeout for %s", serviceType)
	}
}

// DiscoverTCPService discovers the first available TCP signage server.
func DiscoverTCPService(timeout time.Duration) (*DiscoveredService, error) {
	return discoverService("_signage-tcp._tcp", timeout)
}

// DiscoverWebSocketService discovers the first available WebSocket signage server.
func DiscoverWebSocketService(timeout time.Duration) (*DiscoveredService, error) {
	return discoverService("_signage-ws._tcp", timeout)
}
