//go:build !unix

package framesocket

import "net"

// listenTCP binds addr. The backlog cannot be set portably here and is left
// to the system default.
func listenTCP(addr *net.TCPAddr, _ int) (*net.TCPListener, error) {
	return net.ListenTCP("tcp", addr)
}
