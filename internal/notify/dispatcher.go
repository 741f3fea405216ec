package notify

import (
	"context"
	"sync"
	"time"

	"github.com/nkiryanov/todoserver/internal/logger"
)

const (
	defaultWorkers   = 2
	defaultQueueSize = 100
	defaultTimeout   = 10 * time.Second
)

type Message struct {
	Template string
	To       string
	Data     any
}

type renderer interface {
	Render(name string, data any) (subject string, body string, err error)
}

type Config struct {
	// Sender address
	From string

	// Defaults are used if not set
	Workers   int
	QueueSize int
	Timeout   time.Duration // max duration of single message delivery
}

// Deliver messages in background, so slow mail never blocks callers
type Dispatcher struct {
	from    string
	workers int
	timeout time.Duration

	queue    chan Message
	renderer renderer
	sender   Sender
	logger   logger.Logger
}

func NewDispatcher(cfg Config, renderer renderer, sender Sender, logger logger.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Dispatcher{
		from:     cfg.From,
		workers:  cfg.Workers,
		timeout:  cfg.Timeout,
		queue:    make(chan Message, cfg.QueueSize),
		renderer: renderer,
		sender:   sender,
		logger:   logger,
	}
}

// Enqueue the message and return immediately
// Message is dropped if the queue is full
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	select {
	case d.queue <- msg:
		d.logger.Debug("Message queued", "template", msg.Template)
	default:
		d.logger.Error("Message dropped, queue is full", "template", msg.Template, "to", msg.To)
	}
}

// Start workers, they deliver queued messages until ctx is done
// Returned channel is closed when workers delivered what was queued before stop
func (d *Dispatcher) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for range d.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.worker(ctx)
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		d.logger.Debug("Dispatcher stopped")
	}()

	return idleStopped
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain(ctx)
			return
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		default:
			return
		}
	}
}

// Failures are logged only, delivery is never retried
func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	// Messages drained on shutdown still get full timeout
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	subject, body, err := d.renderer.Render(msg.Template, msg.Data)
	if err != nil {
		d.logger.Error("Failed to render message", "template", msg.Template, "error", err)
		return
	}

	err = d.sender.Send(ctx, d.from, msg.To, subject, body)
	if err != nil {
		d.logger.Error("Failed to send message", "template", msg.Template, "to", msg.To, "error", err)
		return
	}

	d.logger.Info("Message sent", "template", msg.Template)
}
