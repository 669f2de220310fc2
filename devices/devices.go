// Package devices discovers Chromecast receivers on the local network
// through mDNS.
package devices

import (
	"fmt"
	"io"
	"log"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	googlecastService = "_googlecast._tcp"

	// CapabilityVideoOut is the bitmask for video output capability (bit 0)
	CapabilityVideoOut = 1

	// mDNS query timeout per request
	queryTimeout = 750 * time.Millisecond
)

// Device is a discovered Chromecast receiver.
type Device struct {
	Name        string
	Addr        string // "host:port"
	IsAudioOnly bool
}

// mdnsQuery is swappable for tests.
var mdnsQuery = mdns.Query

// Discover queries all active interfaces for Chromecast receivers and
// returns the deduplicated results, sorted by name.
func Discover(timeout time.Duration) []Device {
	if timeout <= 0 {
		timeout = queryTimeout
	}

	found := make(map[string]Device)
	var mu sync.Mutex

	entriesCh := make(chan *mdns.ServiceEntry, 256)
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		for entry := range entriesCh {
			if dev, ok := deviceFromMDNSEntry(entry); ok {
				mu.Lock()
				found[dev.Addr] = dev
				mu.Unlock()
			}
		}
	}()

	queryIface := func(iface *net.Interface) {
		params := mdns.DefaultParams(googlecastService)
		params.Entries = entriesCh
		params.Timeout = timeout
		params.DisableIPv6 = true
		params.WantUnicastResponse = true
		params.Logger = log.New(io.Discard, "", 0)
		params.Interface = iface
		_ = mdnsQuery(params)
	}

	// Query on all active interfaces to handle systems with multiple
	// adapters (VPN, Hyper-V, Docker, etc.) where the OS default interface
	// may not be the one connected to the Chromecast network.
	interfaces := getActiveNetworkInterfaces()
	if len(interfaces) > 0 {
		var wg sync.WaitGroup
		for _, iface := range interfaces {
			wg.Add(1)
			go func(iface net.Interface) {
				defer wg.Done()
				queryIface(&iface)
			}(iface)
		}
		wg.Wait()
	} else {
		queryIface(nil)
	}

	close(entriesCh)
	<-doneCh

	result := make([]Device, 0, len(found))
	for _, dev := range found {
		result = append(result, dev)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result
}

func deviceFromMDNSEntry(entry *mdns.ServiceEntry) (Device, bool) {
	if entry == nil || entry.AddrV4 == nil {
		return Device{}, false
	}
	if !strings.Contains(entry.Name, "_googlecast") {
		return Device{}, false
	}

	address := fmt.Sprintf("%s:%d", entry.AddrV4, entry.Port)
	friendlyName := entry.Name

	for _, txt := range entry.InfoFields {
		if after, ok := strings.CutPrefix(txt, "fn="); ok {
			friendlyName = after
			break
		}
	}

	if idx := strings.Index(friendlyName, "._googlecast"); idx > 0 {
		friendlyName = friendlyName[:idx]
	}

	isAudioOnly := false
	for _, txt := range entry.InfoFields {
		if after, ok := strings.CutPrefix(txt, "ca="); ok {
			isAudioOnly = isChromecastAudioOnly(after)
			break
		}
	}

	return Device{
		Name:        friendlyName,
		Addr:        address,
		IsAudioOnly: isAudioOnly,
	}, true
}

// getActiveNetworkInterfaces returns all network interfaces that are up,
// multicast-capable, not loopback, and have an IPv4 address.
func getActiveNetworkInterfaces() []net.Interface {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var active []net.Interface
	for _, iface := range interfaces {
		// Skip down, loopback, or non-multicast interfaces.
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagLoopback != 0 ||
			iface.Flags&net.FlagMulticast == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		hasIPv4 := false
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok {
				if ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
					hasIPv4 = true
					break
				}
			}
		}

		if hasIPv4 {
			active = append(active, iface)
		}
	}

	return active
}

// isChromecastAudioOnly checks if a device is audio-only based on the "ca"
// capability field. The "ca" field in mDNS TXT records is a bitmask where
// bit 0 (value 1) indicates Video Out support. If bit 0 is NOT set, the
// device is considered audio-only (e.g. Chromecast Audio, Google Home
// speakers).
func isChromecastAudioOnly(caField string) bool {
	ca, err := strconv.Atoi(caField)
	if err != nil {
		return false
	}
	return (ca & CapabilityVideoOut) == 0
}
