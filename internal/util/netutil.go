package util

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// CreateListener opens a listening socket on the given network and address.
func CreateListener(network, address string) (net.Listener, error) {
	if network == "" {
		network = "tcp"
	}
	l, err := net.Listen(network, address)
	if err != nil {
		if IsAddrInUse(err) {
			return nil, fmt.Errorf("address %s is already in use: %w", address, err)
		}
		return nil, fmt.Errorf("failed to listen on %s %s: %w", network, address, err)
	}
	return l, nil
}

// IsAddrInUse reports whether err indicates the listen address was taken.
func IsAddrInUse(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var syscallErr *os.SyscallError
	if !errors.As(opErr.Err, &syscallErr) {
		return false
	}
	return errors.Is(syscallErr.Err, syscall.EADDRINUSE)
}
