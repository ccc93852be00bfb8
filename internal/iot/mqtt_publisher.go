package iot

import (
	"context"
	"encoding/json"
	"parking_control/internal/domain"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/rs/zerolog/log"
)

const (
	mqttQueueSize      = 256
	mqttPublishTimeout = 10 * time.Second
)

// IoTDataAPI is the slice of the IoT data plane client used for publishing.
type IoTDataAPI interface {
	Publish(ctx context.Context, params *iotdataplane.PublishInput, optFns ...func(*iotdataplane.Options)) (*iotdataplane.PublishOutput, error)
}

// MQTTPublisher forwards parking spot events to an AWS IoT MQTT topic.
// Events go to <topic>/<event type>. Publishing happens on the Start goroutine.
type MQTTPublisher struct {
	client IoTDataAPI
	topic  string
	events chan domain.ParkingSpotEvent
}

func NewMQTTPublisher(client IoTDataAPI, topic string) *MQTTPublisher {
	return &MQTTPublisher{
		client: client,
		topic:  topic,
		events: make(chan domain.ParkingSpotEvent, mqttQueueSize),
	}
}

// PublishParkingSpotEvent queues event. It never blocks the caller and drops the
// event when the queue is full.
func (p *MQTTPublisher) PublishParkingSpotEvent(_ context.Context, event domain.ParkingSpotEvent) {
	select {
	case p.events <- event:
	default:
		log.Warn().Str("type", string(event.Type)).Msg("mqtt queue is full, dropping event")
	}
}

// Start publishes queued events until ctx is cancelled, then flushes what is left.
func (p *MQTTPublisher) Start(ctx context.Context) {
	for {
		select {
		case event := <-p.events:
			p.publish(event)
		case <-ctx.Done():
			for {
				select {
				case event := <-p.events:
					p.publish(event)
				default:
					return
				}
			}
		}
	}
}

func (p *MQTTPublisher) publish(event domain.ParkingSpotEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("marshal parking spot event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), mqttPublishTimeout)
	defer cancel()

	topic := p.topic + "/" + string(event.Type)
	_, err = p.client.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payload,
	})
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("mqtt publish failed")
		return
	}
	log.Debug().Str("topic", topic).Str("id", event.ParkingSpot.ID.String()).Msg("parking spot event published")
}
