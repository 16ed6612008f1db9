package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/bookshop-fulfillment/payment-service/internal/jobs"
)

type Publisher struct {
	client *RabbitMQClient
}

func NewPublisher(client *RabbitMQClient) *Publisher {
	return &Publisher{
		client: client,
	}
}

// PublishEmailJob hands a job to the email worker queue. Messages are
// persistent and routed by job type so workers can bind selectively.
func (p *Publisher) PublishEmailJob(job jobs.EmailJob) error {
	if !p.client.IsConnected() {
		return fmt.Errorf("no connection to RabbitMQ")
	}

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	if job.Timestamp.IsZero() {
		job.Timestamp = time.Now()
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("job serialization error: %v", err)
	}

	routingKey := fmt.Sprintf("jobs.email.%s", string(job.Type))

	channel := p.client.Channel()
	err = channel.Publish(
		p.client.config.Exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    job.ID.String(),
			Timestamp:    job.Timestamp,
			Headers: amqp.Table{
				"job_type":     string(job.Type),
				"max_attempts": int32(job.Retry.MaxAttempts),
			},
		},
	)

	if err != nil {
		return fmt.Errorf("job publish error: %v", err)
	}

	log.Printf("Email job published: %s -> %s", routingKey, job.ID)
	return nil
}
