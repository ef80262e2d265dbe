package wa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/wppcrm/internal/bus"
	"go.mau.fi/whatsmeow"
)

// AuthEventType enumerates auth event types.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent represents an auth lifecycle event.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// ErrAlreadyLoggedIn is returned when pairing is requested for a session
// that already has credentials.
var ErrAlreadyLoggedIn = errors.New("already logged in")

// StartQRAuth begins the QR auth flow. The returned channel yields QR codes
// until the phone scans one, pairing fails, or timeout elapses; it is closed
// after the terminal event. On timeout the connection is dropped so the
// session goes back to waiting for credentials.
func (a *Adapter) StartQRAuth(ctx context.Context, timeout time.Duration) (<-chan AuthEvent, error) {
	if a.IsLoggedIn() {
		return nil, ErrAlreadyLoggedIn
	}
	qrCtx, cancel := context.WithCancel(context.Background())
	qrChan, err := a.client.GetQRChannel(qrCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("get QR channel: %w", err)
	}

	out := make(chan AuthEvent, 10)

	go func() {
		defer close(out)
		defer cancel()

		// Connect must be called after GetQRChannel.
		if err := a.Connect(); err != nil {
			a.emitAuth(out, AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()})
			return
		}

		var deadline <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			deadline = timer.C
		}

		for {
			select {
			case <-ctx.Done():
				a.Disconnect()
				return
			case <-deadline:
				a.Disconnect()
				a.emitAuth(out, AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"})
				return
			case item, ok := <-qrChan:
				if !ok {
					return
				}
				if done := a.handleQRItem(out, item); done {
					return
				}
			}
		}
	}()

	return out, nil
}

func (a *Adapter) handleQRItem(out chan<- AuthEvent, item whatsmeow.QRChannelItem) bool {
	switch {
	case IsQREvent(item):
		a.emitAuth(out, AuthEvent{Type: AuthEventQRCode, QRCode: item.Code})
		return false
	case item.Event == whatsmeow.QRChannelSuccess.Event:
		a.emitAuth(out, AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"})
	case item.Event == whatsmeow.QRChannelTimeout.Event:
		a.Disconnect()
		a.emitAuth(out, AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"})
	case item.Error != nil:
		a.emitAuth(out, AuthEvent{Type: AuthEventAuthFailed, Message: item.Error.Error()})
	default:
		a.emitAuth(out, AuthEvent{Type: AuthEventAuthFailed, Message: item.Event})
	}
	return true
}

// emitAuth forwards evt to the caller and mirrors it on the bus.
func (a *Adapter) emitAuth(out chan<- AuthEvent, evt AuthEvent) {
	out <- evt
	switch evt.Type {
	case AuthEventQRCode:
		a.bus.Publish(bus.NewEvent(bus.KindSessionQRGenerated, evt.QRCode))
	case AuthEventAuthenticated:
		a.bus.Publish(bus.NewEvent(bus.KindSessionAuthenticated, nil))
	case AuthEventTimeout:
		a.bus.Publish(bus.NewEvent(bus.KindSessionAuthFailed, "timeout"))
	default:
		a.bus.Publish(bus.NewEvent(bus.KindSessionAuthFailed, evt.Message))
	}
}

// IsQREvent checks whether a QR channel item is a QR code event.
func IsQREvent(item whatsmeow.QRChannelItem) bool {
	return item.Event == whatsmeow.QRChannelEventCode
}

// PairPhone links the session using a phone number pairing code instead of a
// QR scan. The returned code is typed into the phone. The client is
// connected first when needed.
func (a *Adapter) PairPhone(ctx context.Context, phone string) (string, error) {
	if a.IsLoggedIn() {
		return "", ErrAlreadyLoggedIn
	}
	if !a.IsConnected() {
		if err := a.Connect(); err != nil {
			return "", fmt.Errorf("connect: %w", err)
		}
	}
	code, err := a.client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
	if err != nil {
		return "", fmt.Errorf("pair phone: %w", err)
	}
	return code, nil
}
