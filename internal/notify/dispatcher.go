package notify

import (
	"context"
	"log/slog"
	"strings"
)

// Dispatcher delivers intents one by one, logging and swallowing failures.
// A nil sender turns every delivery into a no-op.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		logger: logger.With("component", "notify_dispatcher"),
	}
}

// Notify sends a text message. Empty handle or text is a no-op.
func (d *Dispatcher) Notify(ctx context.Context, handle, text string) {
	d.deliver(ctx, Text(handle, text))
}

// NotifyWithFile sends a document with a caption. Empty handle or text is a no-op.
func (d *Dispatcher) NotifyWithFile(ctx context.Context, handle, text, path, name string) {
	d.deliver(ctx, File(handle, text, path, name))
}

// Dispatch delivers intents sequentially in order. Failures never stop the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, intents []Intent) {
	for _, intent := range intents {
		d.deliver(ctx, intent)
	}
}

// DispatchAsync delivers intents in the background. The caller's cancellation is not
// propagated so a finished request does not abort its notifications.
func (d *Dispatcher) DispatchAsync(ctx context.Context, intents []Intent) {
	if len(intents) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	go d.Dispatch(bg, intents)
}

func (d *Dispatcher) deliver(ctx context.Context, intent Intent) {
	if d.sender == nil || strings.TrimSpace(intent.Handle) == "" || intent.Text == "" {
		return
	}
	var err error
	if intent.HasFile() {
		err = d.sender.SendFile(ctx, intent.Handle, intent.Text, intent.FilePath, intent.FileName)
	} else {
		err = d.sender.Send(ctx, intent.Handle, intent.Text)
	}
	if err != nil {
		d.logger.Error("notification failed",
			"handle", intent.Handle,
			"file", intent.FileName,
			"error", err)
		return
	}
	d.logger.Debug("notification sent", "handle", intent.Handle, "file", intent.FileName)
}
