package relay

import (
	"context"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/outbox/registry"
)

type topics interface {
	Publisher(name string) *gcppubsub.Publisher
}

// TopicSender keeps one Pub/Sub publisher per topic. Each publisher owns
// its own batching goroutines, so they are created once and stopped on
// shutdown.
type TopicSender struct {
	topics topics

	mu         sync.Mutex
	publishers map[string]*gcppubsub.Publisher
}

func NewTopicSender(t topics) *TopicSender {
	return &TopicSender{topics: t, publishers: map[string]*gcppubsub.Publisher{}}
}

func (s *TopicSender) Send(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.publisher(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}
	_, err := pub.Publish(ctx, msg).Get(ctx)
	return err
}

func (s *TopicSender) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.publishers[topic]; ok {
		return pub
	}
	pub := s.topics.Publisher(topic)
	if pub != nil {
		s.publishers[topic] = pub
	}
	return pub
}

// Stop flushes and stops every publisher created so far.
func (s *TopicSender) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.publishers {
		pub.Stop()
		delete(s.publishers, topic)
	}
}
