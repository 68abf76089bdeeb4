package ipc

import (
	"os"
	"sort"
	"strings"
)

// Variables forwarded from a client so remote stages see the caller's
// locale and search path.
var (
	forwardKeys     = []string{"HOME", "PATH", "USER", "SHELL", "TERM", "LANG", "TZ"}
	forwardPrefixes = []string{"LC_", "XSH_"}
)

// CaptureEnv collects the forwarded variables from the current process.
func CaptureEnv() map[string]string {
	env := make(map[string]string)
	for _, key := range forwardKeys {
		if val, ok := os.LookupEnv(key); ok {
			env[key] = val
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		for _, prefix := range forwardPrefixes {
			if strings.HasPrefix(k, prefix) {
				env[k] = v
			}
		}
	}
	return env
}

// Environ renders env as KEY=VALUE pairs in key order. An empty map gives
// nil, meaning "inherit".
func Environ(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
