package proc

import "net"

// FreePort asks the OS for an unused TCP port on the loopback
// interface. The listener is closed immediately, so the port stays
// free only until the caller binds it.
func FreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}
