// Package identity resolves the default "creator" string recorded on an
// Authority Key's metadata when a caller does not supply one.
package identity

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
)

// CurrentOperator returns a best-effort "user@host" identity string for the
// process's environment. The user name comes from os/user, falling back to
// the USER/USERNAME environment variables; runtime.GOOS stands in for the
// host when the hostname cannot be resolved, and the result is the host
// alone when no user name resolves.
func CurrentOperator() string {
	name := lookupUsername()
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = runtime.GOOS
	}
	if name == "" {
		return host
	}
	return fmt.Sprintf("%s@%s", name, host)
}

func lookupUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, env := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return ""
}
