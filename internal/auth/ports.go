package auth

import (
	"fmt"
	"net"
)

// CallbackPorts is the ordered candidate list for the loopback
// callback listener. The redirect URIs registered with the OAuth
// client must cover these ports, so the list is fixed rather than
// asking the kernel for an ephemeral port.
var CallbackPorts = []int{8785, 8786, 8787}

// SelectPort probes the candidates in order and returns the first port
// that can be bound on the loopback interface. The probe listener is
// closed immediately; the caller binds the port for real. When every
// candidate is taken the error wraps ErrNoPortAvailable.
func SelectPort(candidates []int) (int, error) {
	for _, port := range candidates {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		ln.Close()
		return port, nil
	}
	return 0, fmt.Errorf("%w: tried %v", ErrNoPortAvailable, candidates)
}
