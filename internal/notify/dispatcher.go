package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"restaurante/internal/logger"
	"restaurante/internal/models"
)

// Defaults of the dispatcher timings.
const (
	DefaultNotificationTTL = 15 * time.Second
	DefaultPermissionDelay = 3 * time.Second
)

// Options configures a Dispatcher. Nil capabilities are treated as absent.
type Options struct {
	Sounds          []Sound
	Center          NotificationCenter
	Focuser         WindowFocuser
	Toasts          *ToastQueue
	NotificationTTL time.Duration
	PermissionDelay time.Duration
}

// Dispatcher turns a new order into audible, OS-level and in-app alerts.
type Dispatcher struct {
	sounds          []Sound
	center          NotificationCenter
	focuser         WindowFocuser
	toasts          *ToastQueue
	notificationTTL time.Duration
	permissionDelay time.Duration

	permissionOnce sync.Once
}

// NewDispatcher creates a dispatcher from opts.
func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{
		sounds:          opts.Sounds,
		center:          opts.Center,
		focuser:         opts.Focuser,
		toasts:          opts.Toasts,
		notificationTTL: opts.NotificationTTL,
		permissionDelay: opts.PermissionDelay,
	}
	if d.toasts == nil {
		d.toasts = NewToastQueue(DefaultToastTTL)
	}
	if d.notificationTTL <= 0 {
		d.notificationTTL = DefaultNotificationTTL
	}
	if d.permissionDelay <= 0 {
		d.permissionDelay = DefaultPermissionDelay
	}
	return d
}

// Toasts returns the in-app toast queue.
func (d *Dispatcher) Toasts() *ToastQueue {
	return d.toasts
}

// Start asks for notification permission once, after the configured delay,
// when the user has neither granted nor denied it yet.
func (d *Dispatcher) Start(ctx context.Context) {
	d.permissionOnce.Do(func() {
		if d.center == nil || d.permission() != PermissionDefault {
			return
		}
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(d.permissionDelay):
			}
			p, err := d.center.RequestPermission(ctx)
			if err != nil {
				logger.Warn("notification permission request failed", "err", err)
				return
			}
			logger.Info("notification permission resolved", "permission", p)
		}()
	})
}

func (d *Dispatcher) permission() (p Permission) {
	defer func() {
		if r := recover(); r != nil {
			p = PermissionUnsupported
		}
	}()
	if d.center == nil {
		return PermissionUnsupported
	}
	return d.center.Permission()
}

// Report describes which channels delivered an alert.
type Report struct {
	Sound      string
	AudioErr   error
	OSNotified bool
	OSErr      error
	Toast      Toast
}

// NotifyNewOrder alerts about o. It never fails: audio and OS notification
// errors are reported and logged, and the toast is always shown.
func (d *Dispatcher) NotifyNewOrder(_ context.Context, o models.Order) Report {
	var r Report

	r.Sound, r.AudioErr = PlayChain(d.sounds)
	if r.AudioErr != nil {
		logger.Warn("new order alert sound failed", "order_id", o.ID, "err", r.AudioErr)
	}

	title, body := Describe(o)
	r.OSErr = d.showOS(Notification{Title: title, Body: body, Tag: o.ID})
	r.OSNotified = r.OSErr == nil
	if r.OSErr != nil {
		logger.Debug("os notification not shown", "order_id", o.ID, "err", r.OSErr)
	}

	variant := ToastInfo
	if !r.OSNotified {
		variant = ToastProminent
	}
	r.Toast = d.toasts.Push(variant, title, body)
	return r
}

// NotifyError raises an error toast, used for failed operator actions.
func (d *Dispatcher) NotifyError(title, message string) Toast {
	return d.toasts.Push(ToastError, title, message)
}

func (d *Dispatcher) showOS(n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: notification api panicked: %v", models.ErrPermissionDenied, r)
		}
	}()

	switch p := d.permission(); p {
	case PermissionGranted:
	case PermissionUnsupported:
		return fmt.Errorf("%w: notifications unsupported", models.ErrPermissionDenied)
	default:
		return fmt.Errorf("%w: permission is %s", models.ErrPermissionDenied, p)
	}

	handle, err := d.center.Show(n)
	if err != nil {
		return err
	}
	handle.OnClick(func() {
		if d.focuser != nil {
			d.focuser.Focus()
		}
		handle.Close()
	})
	time.AfterFunc(d.notificationTTL, handle.Close)
	return nil
}

// Describe builds the alert title and body of an order.
func Describe(o models.Order) (title, body string) {
	title = "Novo pedido #" + o.ShortID()
	amount := strings.Replace(o.TotalAmount.StringFixed(2), ".", ",", 1)
	body = fmt.Sprintf("%s - R$ %s", o.CustomerName, amount)
	return title, body
}
