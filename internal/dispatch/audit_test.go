package dispatch

import (
	"testing"

	"cloud.google.com/go/pubsub"
)

func TestOrderedPublishEnabledForKeyedMessages(t *testing.T) {
	topic := &pubsub.Topic{}
	enableOrderedPublish(topic)
	if !topic.EnableMessageOrdering {
		t.Fatal("publishes with an OrderingKey fail unless message ordering is enabled on the topic")
	}
}
