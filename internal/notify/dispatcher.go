package notify

import (
	"log"

	"github.com/bookshop-fulfillment/payment-service/internal/domain"
	"github.com/bookshop-fulfillment/payment-service/internal/jobs"
)

// JobPublisher is the queue surface the dispatcher needs. Satisfied by
// messaging.Publisher and by test fakes.
type JobPublisher interface {
	PublishEmailJob(job jobs.EmailJob) error
}

// Dispatcher submits email jobs without ever blocking or failing the caller.
// Jobs go through a buffered channel drained by a single background worker;
// publish errors are logged, a full buffer drops the job with a log line.
type Dispatcher struct {
	publisher JobPublisher
	queue     chan jobs.EmailJob
	done      chan struct{}
}

func NewDispatcher(publisher JobPublisher) *Dispatcher {
	d := &Dispatcher{
		publisher: publisher,
		queue:     make(chan jobs.EmailJob, 64),
		done:      make(chan struct{}),
	}

	go d.run()

	return d
}

func (d *Dispatcher) run() {
	for job := range d.queue {
		if err := d.publisher.PublishEmailJob(job); err != nil {
			log.Printf("Email job enqueue error: type=%s, %v", job.Type, err)
		}
	}
	close(d.done)
}

// Close stops accepting jobs and waits for the worker to drain the buffer.
func (d *Dispatcher) Close() {
	close(d.queue)
	<-d.done
}

// Enqueue submits a job and returns immediately. It never blocks the caller:
// if the buffer is full the job is dropped with an error log.
func (d *Dispatcher) Enqueue(jobType jobs.JobType, payload interface{}) {
	job := jobs.EmailJob{
		Type:    jobType,
		Payload: payload,
		Retry:   jobs.DefaultRetryPolicy(),
	}

	select {
	case d.queue <- job:
	default:
		log.Printf("Email job buffer full, dropping job: type=%s", jobType)
	}
}

// OrderCreated submits the admin notice for a freshly created order.
func (d *Dispatcher) OrderCreated(order *domain.Order) {
	d.Enqueue(jobs.JobOrderCreated, jobs.AdminNoticePayload{
		PaymentID: order.PaymentID,
		Total:     order.Total,
		Currency:  order.Currency,
	})
}

// OrderConfirmation submits the customer confirmation for a just-paid order.
// A paid order missing the contact fields the template needs is logged as an
// error so it is never dropped without record.
func (d *Dispatcher) OrderConfirmation(order *domain.Order) {
	if order.Email == "" || order.FirstName == "" {
		log.Printf("Cannot send order confirmation, missing contact fields: payment_id=%s", order.PaymentID)
		return
	}

	d.Enqueue(jobs.JobOrderConfirmation, jobs.OrderConfirmationPayload{
		Email:     order.Email,
		FirstName: order.FirstName,
		PaymentID: order.PaymentID,
		Total:     order.Total,
		Currency:  order.Currency,
	})
}

// OrderConfirmed submits the admin notice for a just-paid order, independent
// of whether the customer confirmation could be addressed.
func (d *Dispatcher) OrderConfirmed(order *domain.Order) {
	d.Enqueue(jobs.JobOrderConfirmed, jobs.AdminNoticePayload{
		PaymentID: order.PaymentID,
		Total:     order.Total,
		Currency:  order.Currency,
	})
}
