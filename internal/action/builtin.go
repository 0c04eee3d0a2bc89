package action

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seantiz/fam/internal/session"
)

// Built-in action names.
const (
	ActionNoop  = "noop"
	ActionSleep = "sleep"
	ActionPut   = "put"
	ActionFail  = "fail"
)

// RegisterBuiltins adds the built-in actions to c.
func RegisterBuiltins(c *Catalog) {
	c.Register(ActionNoop, Noop)
	c.Register(ActionSleep, Sleep)
	c.Register(ActionPut, Put)
	c.Register(ActionFail, Fail)
}

// Noop succeeds without doing anything.
func Noop(context.Context, session.Session, string) error {
	return nil
}

// Sleep parses the item as a duration and waits that long, or until ctx is done.
func Sleep(ctx context.Context, _ session.Session, item string) error {
	d, err := time.ParseDuration(item)
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Put stages the item into the session. Items of the form "key=value" stage
// value under key; any other item stages an empty value under the whole item.
func Put(_ context.Context, s session.Session, item string) error {
	key, value, _ := strings.Cut(item, "=")
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("empty key in item %q", item)
	}
	return s.Put(key, value)
}

// Fail always returns an error.
func Fail(_ context.Context, _ session.Session, item string) error {
	return fmt.Errorf("action failed for item %q", item)
}
