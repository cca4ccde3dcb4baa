package debug

import (
	"fmt"
	"os"
	"strconv"
)

type debug struct {
	Txn      bool
	Events   bool
	Modified bool
}

var d *debug

func init() {
	d = &debug{}
	d.Txn = boolEnv("NG_DEBUG_TXN")
	d.Events = boolEnv("NG_DEBUG_EVENTS")
	d.Modified = boolEnv("NG_DEBUG_MODIFIED")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

func Txn() bool {
	return d.Txn
}
func Events() bool {
	return d.Events
}
func Modified() bool {
	return d.Modified
}

// Set overrides a toggle by its environment variable name, for the CLI.
func Set(name string, on bool) error {
	switch name {
	case "NG_DEBUG_TXN", "txn":
		d.Txn = on
	case "NG_DEBUG_EVENTS", "events":
		d.Events = on
	case "NG_DEBUG_MODIFIED", "modified":
		d.Modified = on
	default:
		return fmt.Errorf("unknown debug toggle %q", name)
	}
	return nil
}

func Logf(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, msg, args...)
}
