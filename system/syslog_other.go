//go:build !linux

package system

import "errors"

// EnableSyslog is only supported on linux
func EnableSyslog() error {
	return errors.New("Syslog only supported on linux")
}
