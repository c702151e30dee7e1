package hw

import (
	"context"
	"log"
	"time"

	"github.com/shopfloor/shearlock/internal/shear/frame"
	"github.com/shopfloor/shearlock/internal/shear/types"
)

// ReaderLoop is the dedicated polling goroutine for the card reader.
// It feeds every raw report into the frame assembler, flushes pending
// frames when the reader goes quiet, and survives device loss: a failed
// read drops the connection and retries on a fixed interval instead of
// terminating the loop.
type ReaderLoop struct {
	reader ReportReader
	asm    *frame.Assembler
	onScan func(types.CardScan)
	logger *log.Logger

	pollInterval  time.Duration
	retryInterval time.Duration

	now       func() time.Time
	nextRetry time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

type ReaderLoopConfig struct {
	// PollInterval is the sleep between reader reads.  Defaults to 20ms,
	// fast enough to keep up with the reader's report cadence.
	PollInterval time.Duration

	// RetryInterval is how long to wait before re-attempting a failed
	// connection.  Defaults to 5s.
	RetryInterval time.Duration
}

func NewReaderLoop(r ReportReader, cfg ReaderLoopConfig, onScan func(types.CardScan), logger *log.Logger) *ReaderLoop {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 20 * time.Millisecond
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	return &ReaderLoop{
		reader:        r,
		asm:           frame.New(),
		onScan:        onScan,
		logger:        logger,
		pollInterval:  cfg.PollInterval,
		retryInterval: cfg.RetryInterval,
		now:           func() time.Time { return time.Now().UTC() },
		done:          make(chan struct{}),
	}
}

// Start begins the polling loop.  The loop exits when ctx is cancelled
// or Stop is called.
func (l *ReaderLoop) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	go l.loop(ctx)
	l.logger.Printf("card reader loop started (poll=%s, retry=%s)", l.pollInterval, l.retryInterval)
}

// Stop signals the loop to exit and waits for it to finish.
func (l *ReaderLoop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	<-l.done
}

func (l *ReaderLoop) loop(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.step()
		}
	}
}

func (l *ReaderLoop) step() {
	now := l.now()

	if !l.reader.Connected() {
		if now.Before(l.nextRetry) {
			return
		}
		if err := l.reader.Connect(); err != nil {
			l.logger.Printf("card reader connect: %v", err)
			l.nextRetry = now.Add(l.retryInterval)
			return
		}
		l.logger.Printf("card reader connected")
	}

	report, err := l.reader.ReadReport()
	if err != nil {
		// Device gone mid-read.  Drop the handle and fall back to the
		// reconnect path; the loop itself never dies on hardware errors.
		l.logger.Printf("card reader read: %v", err)
		_ = l.reader.Close()
		l.nextRetry = now.Add(l.retryInterval)
		return
	}

	var scan types.CardScan
	var ok bool
	if len(report) > 0 {
		scan, ok = l.asm.Submit(report, now)
	} else {
		scan, ok = l.asm.Flush(now)
	}
	if ok && l.onScan != nil {
		l.onScan(scan)
	}
}
