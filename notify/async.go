package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/sirupsen/logrus"
)

// BillSender delivers one bill notification.
type BillSender interface {
	Send(ctx context.Context, view *models.BillView, email string) error
}

type job struct {
	ctx   context.Context
	view  *models.BillView
	email string
}

// AsyncNotifier runs notifications on a bounded queue drained by worker goroutines.
// Notify never blocks: a full queue drops the job.
type AsyncNotifier struct {
	sender BillSender
	logger *logrus.Logger

	workers        int
	maxAttempts    int
	initialBackoff time.Duration

	mu      sync.RWMutex
	closed  bool
	jobs    chan job
	wg      sync.WaitGroup
	started sync.Once
}

// NewAsyncNotifier reads NOTIFY_WORKERS, NOTIFY_QUEUE_SIZE and NOTIFY_MAX_ATTEMPTS.
func NewAsyncNotifier(sender BillSender, logger *logrus.Logger) *AsyncNotifier {
	return &AsyncNotifier{
		sender:         sender,
		logger:         logger,
		workers:        config.IntFromEnv("NOTIFY_WORKERS", 2),
		maxAttempts:    config.IntFromEnv("NOTIFY_MAX_ATTEMPTS", 3),
		initialBackoff: 2 * time.Second,
		jobs:           make(chan job, config.IntFromEnv("NOTIFY_QUEUE_SIZE", 100)),
	}
}

func (n *AsyncNotifier) Start() {
	n.started.Do(func() {
		for i := 0; i < n.workers; i++ {
			n.wg.Add(1)
			go n.work()
		}
	})
}

func (n *AsyncNotifier) Notify(ctx context.Context, view *models.BillView, email string) {
	email = strings.TrimSpace(email)
	if email == "" || view == nil {
		return
	}
	fields := logrus.Fields{"field": "AsyncNotifier", "bill_number": view.BillNumber, "series": view.BillType}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.logger.WithFields(fields).Warn("notifier stopped, dropping notification")
		return
	}
	select {
	case n.jobs <- job{ctx: context.WithoutCancel(ctx), view: view, email: email}:
	default:
		n.logger.WithFields(fields).Error("notification queue full, dropping notification")
	}
}

func (n *AsyncNotifier) work() {
	defer n.wg.Done()
	for j := range n.jobs {
		n.deliver(j)
	}
}

func (n *AsyncNotifier) deliver(j job) {
	backoff := n.initialBackoff
	var err error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		if err = n.sender.Send(j.ctx, j.view, j.email); err == nil {
			return
		}
		if attempt < n.maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(j.ctx)
	config.LogError(n.logger, "Notify", "AsyncNotifier.deliver", "giving up after retries",
		map[string]any{"bill_number": j.view.BillNumber, "series": j.view.BillType, "correlation_id": correlationId}, err)
}

// Shutdown stops accepting jobs and waits for queued ones until ctx expires.
func (n *AsyncNotifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.jobs)
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("notifier shutdown: " + ctx.Err().Error())
	}
}
