package iot

import (
	"context"
	"encoding/json"
	"errors"
	"parking_control/internal/domain"
	"parking_control/internal/repository"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"
)

// SQSAPI is the slice of the SQS client the consumer needs.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Registrar creates parking spots; satisfied by *service.ParkingSpotService.
type Registrar interface {
	CreateParkingSpot(ctx context.Context, dto domain.ParkingSpotDTO) (*domain.ParkingSpot, error)
}

// SQSConsumer registers parking spots from messages on the registration queue.
type SQSConsumer struct {
	sqsClient  SQSAPI
	queueURL   string
	registrar  Registrar
	retryDelay time.Duration
}

func NewSQSConsumer(client SQSAPI, queueURL string, registrar Registrar) *SQSConsumer {
	return &SQSConsumer{
		sqsClient:  client,
		queueURL:   queueURL,
		registrar:  registrar,
		retryDelay: 5 * time.Second,
	}
}

// Start long-polls the queue until ctx is cancelled.
func (c *SQSConsumer) Start(ctx context.Context) {
	log.Info().Str("queue", c.queueURL).Msg("sqs consumer started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("sqs consumer stopped")
			return
		default:
		}

		if err := c.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			log.Error().Err(err).Msg("sqs receive failed")
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
			}
		}
	}
}

// Poll receives one batch and handles every message in it.
func (c *SQSConsumer) Poll(ctx context.Context) error {
	result, err := c.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   60,
	})
	if err != nil {
		return err
	}

	for _, message := range result.Messages {
		if c.handle(ctx, message) {
			c.deleteMessage(ctx, message.ReceiptHandle)
		}
	}
	return nil
}

// handle reports whether the message is finished with and can be deleted.
// Transient failures return false so SQS redelivers after the visibility timeout.
func (c *SQSConsumer) handle(ctx context.Context, message types.Message) bool {
	logger := log.With().Str("messageId", aws.ToString(message.MessageId)).Logger()

	if message.Body == nil {
		logger.Warn().Msg("dropping message with empty body")
		return true
	}

	var dto domain.ParkingSpotDTO
	if err := json.Unmarshal([]byte(*message.Body), &dto); err != nil {
		logger.Warn().Err(err).Msg("dropping malformed registration message")
		return true
	}
	if err := binding.Validator.ValidateStruct(&dto); err != nil {
		logger.Warn().Err(err).Msg("dropping invalid registration message")
		return true
	}

	spot, err := c.registrar.CreateParkingSpot(ctx, dto)
	switch {
	case err == nil:
		logger.Info().Str("id", spot.ID.String()).Msg("parking spot registered from queue")
		return true
	case errors.Is(err, repository.ErrDuplicateEntry):
		logger.Warn().Err(err).Str("licensePlateCar", dto.LicensePlateCar).Msg("dropping conflicting registration message")
		return true
	default:
		logger.Error().Err(err).Msg("registration failed, leaving message for redelivery")
		return false
	}
}

func (c *SQSConsumer) deleteMessage(ctx context.Context, receiptHandle *string) {
	if receiptHandle == nil {
		log.Warn().Msg("message has no receipt handle, cannot delete")
		return
	}
	_, err := c.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		log.Error().Err(err).Msg("sqs delete failed")
	}
}
