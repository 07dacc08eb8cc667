package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/botmesero/mesero/core/logger"
	"github.com/botmesero/mesero/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the lane of the job's chat is saturated.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe  = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
	statusRe = regexp.MustCompile(`\((\d{3})\)\s*$`)
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the total capacity, split evenly between lanes.
	QueueSize int
	// Workers is the number of lanes; each lane has one worker.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

// Job is one outbound Telegram call. Jobs for the same Chat always land on
// the same lane, so a chat sees its sends and edits in enqueue order.
type Job struct {
	Chat     int64
	Action   string
	Endpoint string
	// Run performs the call. It is called again on retry.
	Run func() error
}

type queued struct {
	ctx context.Context
	Job
}

// Dispatcher runs outbound Telegram calls in the background with retries.
// One dispatcher is shared by every bot in the process.
type Dispatcher struct {
	opts  Options
	lanes []chan queued

	mu     sync.RWMutex
	closed bool

	spread atomic.Uint64
	errs   atomic.Uint64
	wg     sync.WaitGroup
}

// NewDispatcher starts a dispatcher, filling zero options with defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	opts.MaxRetries = max(opts.MaxRetries, 0)
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{opts: opts, lanes: make([]chan queued, opts.Workers)}
	perLane := max(opts.QueueSize/opts.Workers, 1)
	d.wg.Add(len(d.lanes))
	for i := range d.lanes {
		d.lanes[i] = make(chan queued, perLane)
		go d.drain(i)
	}
	return d
}

// Enqueue schedules j on the lane of its chat. Jobs without a chat are
// spread over all lanes.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.lanes[d.laneFor(j.Chat)] <- queued{ctx: ctx, Job: j}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) laneFor(chat int64) int {
	n := uint64(len(d.lanes))
	if chat == 0 {
		return int(d.spread.Add(1) % n)
	}
	return int(uint64(chat) % n)
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs, lets every lane finish what is queued and
// waits for the workers. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, lane := range d.lanes {
			close(lane)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) drain(lane int) {
	defer d.wg.Done()
	for q := range d.lanes[lane] {
		d.run(lane, q)
	}
}

func (d *Dispatcher) run(lane int, q queued) {
	ctx := q.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	deadline, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attrs := slices.Clip([]slog.Attr{
		slog.String("action", q.Action),
		slog.String("endpoint", q.Endpoint),
		slog.Int("lane", lane),
	})

	var err error
	attempt := 0
	for {
		attempt++
		if err = q.Run(); err == nil {
			break
		}
		delay, retryable := d.retryDelay(err, attempt)
		if !retryable || attempt > d.opts.MaxRetries {
			break
		}
		logger.Debug(ctx, component, "send.retry",
			append(attrs, slog.Int("attempt", attempt), slog.Duration("delay", delay))...)
		if !wait(deadline, delay) {
			err = errors.Join(err, deadline.Err())
			break
		}
	}

	attrs = append(attrs, slog.Int("attempts", attempt), slog.Duration("elapsed", time.Since(start)))
	if err == nil {
		if attempt > 1 {
			logger.Info(ctx, component, "send.retry.success", attrs...)
		} else {
			logger.Debug(ctx, component, "send.success", attrs...)
		}
		return
	}
	d.errs.Add(1)
	logger.Error(ctx, component, "send.fail", append(attrs,
		slog.String("err", sanitizeErrorMessage(err)),
		slog.String("error_kind", errorKind(err)),
	)...)
}

func wait(ctx context.Context, delay time.Duration) bool {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryDelay decides whether err is worth another attempt and how long to
// wait first. Flood control responses carry their own retry_after.
func (d *Dispatcher) retryDelay(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		after := time.Duration(flood.RetryAfter) * time.Second
		if after <= 0 {
			after = d.opts.RetryBackoff
		}
		return after, after < d.opts.MaxDuration
	}
	if netutil.ShouldRetry(err) {
		return d.opts.RetryBackoff * time.Duration(attempt), true
	}
	return 0, false
}

// errorKind buckets err for the error_kind log field.
func errorKind(err error) string {
	var (
		netErr net.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
		alert  tls.AlertError
		flood  tele.FloodError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &dnsErr):
		return "dns"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &alert):
		return "tls"
	case errors.As(err, &flood):
		return "flood"
	}
	switch code := apiStatus(err); {
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// apiStatus returns the Bot API status code carried by err, either as a
// *tele.Error or as the "(NNN)" suffix telebot puts on error text.
func apiStatus(err error) int {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	if m := statusRe.FindStringSubmatch(strings.TrimSpace(err.Error())); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// sanitizeErrorMessage keeps bot tokens out of logs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
