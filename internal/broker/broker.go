// Package broker wraps the Redis pub/sub transport used to fan alerts
// out from the gateway to live dashboard sessions. Delivery is
// at-least-once to currently subscribed listeners; there is no ordering
// guarantee and no replay for listeners that subscribe after a publish.
package broker

import (
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Fixed topic/event pair for threat fan-out. Publisher and subscriber
// sides must also agree on the cluster identifier or delivery silently
// fails.
const (
	TopicCriticalAlert  = "critical-alert"
	EventThreatDetected = "threat-detected"
)

// envelope is the on-wire frame for one published event.
type envelope struct {
	Event string                 `msgpack:"event"`
	Data  map[string]interface{} `msgpack:"data"`
}

func encodeEnvelope(event string, data map[string]interface{}) ([]byte, error) {
	return msgpack.Marshal(&envelope{Event: event, Data: data})
}

func decodeEnvelope(frame []byte) (*envelope, error) {
	var env envelope
	if err := msgpack.Unmarshal(frame, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func channelName(cluster, topic string) string {
	if cluster == "" {
		return topic
	}
	return cluster + ":" + topic
}

func topicFromChannel(cluster, channel string) string {
	if cluster == "" {
		return channel
	}
	return strings.TrimPrefix(channel, cluster+":")
}
