//go:build linux

package shortcut

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

// Linux has no global key grab that works on both X11 and Wayland, so
// shortcuts go through the desktop portal.
const (
	portalDest    = "org.freedesktop.portal.Desktop"
	portalPath    = dbus.ObjectPath("/org/freedesktop/portal/desktop")
	portalIface   = "org.freedesktop.portal.GlobalShortcuts"
	requestIface  = "org.freedesktop.portal.Request"
	sessionIface  = "org.freedesktop.portal.Session"
	signalResp    = requestIface + ".Response"
	signalPressed = portalIface + ".Activated"

	portalTimeout = 30 * time.Second
)

// portalModifiers are the modifier names of the XDG shortcuts format
var portalModifiers = map[Modifier]string{
	ModCtrl:  "CTRL",
	ModShift: "SHIFT",
	ModAlt:   "ALT",
	ModSuper: "LOGO",
}

// portalKeys maps key names to xkb keysym names where they differ
var portalKeys = map[string]string{
	"return": "Return",
	"escape": "Escape",
	"delete": "Delete",
	"tab":    "Tab",
	"left":   "Left",
	"right":  "Right",
	"up":     "Up",
	"down":   "Down",
}

// PortalTrigger renders acc in the XDG shortcuts format, e.g. "CTRL+SHIFT+j"
func PortalTrigger(acc Accelerator) string {
	parts := make([]string, 0, len(acc.Mods)+1)
	for _, m := range acc.Mods {
		parts = append(parts, portalModifiers[m])
	}

	key := acc.Key
	switch {
	case portalKeys[key] != "":
		key = portalKeys[key]
	case len(key) > 1 && key[0] == 'f':
		key = strings.ToUpper(key)
	}
	return strings.Join(append(parts, key), "+")
}

// portalToken is a handle token; the portal only allows [A-Za-z0-9_]
func portalToken() string {
	return "nohands_" + strings.ReplaceAll(uuid.NewString(), "-", "_")
}

type portalShortcut struct {
	ID      string
	Options map[string]dbus.Variant
}

// portalBinding holds one GlobalShortcuts session with a single shortcut
type portalBinding struct {
	acc Accelerator
	id  string

	conn    *dbus.Conn
	session dbus.ObjectPath
	signals chan *dbus.Signal
	keydown chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
}

func newHostBinding(acc Accelerator) binding {
	return &portalBinding{
		acc:     acc,
		id:      strings.ToLower(strings.ReplaceAll(acc.Text, "+", "-")),
		keydown: make(chan struct{}, 1),
	}
}

// Register fails when there is no session bus or no portal implementing
// GlobalShortcuts, and when the user declines the binding.
func (b *portalBinding) Register() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("session bus: %w", err)
	}

	if err := conn.AddMatchSignal(dbus.WithMatchInterface(requestIface), dbus.WithMatchMember("Response")); err != nil {
		conn.Close()
		return fmt.Errorf("match portal responses: %w", err)
	}
	if err := conn.AddMatchSignal(dbus.WithMatchInterface(portalIface), dbus.WithMatchMember("Activated")); err != nil {
		conn.Close()
		return fmt.Errorf("match shortcut activations: %w", err)
	}

	b.conn = conn
	b.signals = make(chan *dbus.Signal, 16)
	conn.Signal(b.signals)

	ctx, cancel := context.WithTimeout(context.Background(), portalTimeout)
	defer cancel()

	if err := b.createSession(ctx); err != nil {
		conn.Close()
		return err
	}
	if err := b.bind(ctx); err != nil {
		b.closeSession()
		conn.Close()
		return err
	}

	b.stop = make(chan struct{})
	b.wg.Add(1)
	go b.listen()
	return nil
}

func (b *portalBinding) createSession(ctx context.Context) error {
	results, err := b.request(ctx, "CreateSession", map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant(portalToken()),
		"session_handle_token": dbus.MakeVariant(portalToken()),
	})
	if err != nil {
		return err
	}

	// older portals send an object path, newer ones a string
	switch v := results["session_handle"].Value().(type) {
	case string:
		b.session = dbus.ObjectPath(v)
	case dbus.ObjectPath:
		b.session = v
	default:
		return errors.New("CreateSession: no session handle")
	}
	return nil
}

func (b *portalBinding) bind(ctx context.Context) error {
	shortcuts := []portalShortcut{{
		ID: b.id,
		Options: map[string]dbus.Variant{
			"description":       dbus.MakeVariant("nohands " + b.acc.Text),
			"preferred_trigger": dbus.MakeVariant(PortalTrigger(b.acc)),
		},
	}}
	_, err := b.request(ctx, "BindShortcuts", b.session, shortcuts, "", map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(portalToken()),
	})
	return err
}

// request calls a portal method and waits for the Response signal on the
// request object it returns
func (b *portalBinding) request(ctx context.Context, method string, args ...any) (map[string]dbus.Variant, error) {
	var handle dbus.ObjectPath
	err := b.conn.Object(portalDest, portalPath).
		CallWithContext(ctx, portalIface+"."+method, 0, args...).
		Store(&handle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", method, ctx.Err())
		case sig, ok := <-b.signals:
			if !ok {
				return nil, fmt.Errorf("%s: session bus closed", method)
			}
			if sig.Name != signalResp || sig.Path != handle {
				continue
			}

			var code uint32
			var results map[string]dbus.Variant
			if err := dbus.Store(sig.Body, &code, &results); err != nil {
				return nil, fmt.Errorf("%s: %w", method, err)
			}
			if code != 0 {
				return nil, fmt.Errorf("%s: portal answered %d", method, code)
			}
			return results, nil
		}
	}
}

func (b *portalBinding) listen() {
	defer b.wg.Done()
	for {
		select {
		case <-b.stop:
			return
		case sig, ok := <-b.signals:
			if !ok {
				return
			}
			if sig.Name != signalPressed || len(sig.Body) < 2 {
				continue
			}
			session, _ := sig.Body[0].(dbus.ObjectPath)
			id, _ := sig.Body[1].(string)
			if session != b.session || id != b.id {
				continue
			}
			select {
			case b.keydown <- struct{}{}:
			default:
			}
		}
	}
}

func (b *portalBinding) closeSession() {
	if b.session == "" {
		return
	}
	_ = b.conn.Object(portalDest, b.session).Call(sessionIface+".Close", 0).Err
	b.session = ""
}

func (b *portalBinding) Unregister() error {
	if b.conn == nil {
		return nil
	}
	close(b.stop)
	b.wg.Wait()

	b.closeSession()
	b.conn.RemoveSignal(b.signals)
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *portalBinding) Keydown() <-chan struct{} {
	return b.keydown
}
