package net

import (
	"fmt"
	"net"
)

// ShareBase returns the base URL other devices on the LAN can use to
// reach this server.
func ShareBase(port int) string {
	return fmt.Sprintf("http://%s:%d", shareIP(), port)
}

// shareIP picks the address to put in share links: the source address
// of a would-be outbound dial, or failing that the first non-loopback
// IPv4 on any interface. The dial never sends a packet.
func shareIP() string {
	if conn, err := net.Dial("udp", "8.8.8.8:80"); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
			return addr.IP.String()
		}
	}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return "127.0.0.1"
}
