package worker

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"lobechat-go/internal/platform/rabbitmq"
)

// HandlerFunc processes one delivery body. A nil error acks the delivery;
// anything else nacks it without requeue.
type HandlerFunc func(ctx context.Context, body []byte) error

// queueWorker owns the consume loop shared by every worker.
type queueWorker struct {
	conn      *amqp.Connection
	queueName string
	prefetch  int
	handle    HandlerFunc
	log       *logrus.Entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (w *queueWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, deliveries, err := rabbitmq.Consume(w.conn, w.queueName, w.prefetch)
	if err != nil {
		return err
	}
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					w.log.Warn("delivery channel closed")
					return
				}
				w.dispatch(workerCtx, d)
			}
		}
	}()

	w.log.WithField("queue", w.queueName).Info("worker started")
	return nil
}

func (w *queueWorker) dispatch(ctx context.Context, d amqp.Delivery) {
	if err := w.handle(ctx, d.Body); err != nil {
		w.log.WithError(err).WithField("queue", w.queueName).Error("handle delivery failed")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (w *queueWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
