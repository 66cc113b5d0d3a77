// Package pubsub wraps the Pub/Sub v2 client with the topic and
// subscription this service publishes to and consumes from.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/marquezdaniela/reciclaje-municipal/pkg/config"
	"github.com/marquezdaniela/reciclaje-municipal/pkg/logger"
)

var errNotInitialized = errors.New("pubsub client not initialized")

type Client struct {
	client  *pubsub.Client
	project string
	cfg     config.PubSubConfig
	logg    *logger.Logger
}

// NewClient connects and makes sure the requests topic exists, creating it
// when cfg.Provision is set.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	raw, err := pubsub.NewClient(ctx, project, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: raw, project: project, cfg: cfg, logg: logg}
	if err := c.ensureTopic(ctx, cfg.RequestsTopic); err != nil {
		_ = raw.Close()
		return nil, err
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"project": project, "topic": cfg.RequestsTopic}), "pubsub.connected")
	return c, nil
}

// clientOptions prefers inline credentials over a key file. With neither,
// the library falls back to ADC or PUBSUB_EMULATOR_HOST.
func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(gcp.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (c *Client) ensureTopic(ctx context.Context, name string) error {
	topic := resourceName(c.project, "topics", name)
	if topic == "" {
		return fmt.Errorf("topic %q not configured", name)
	}
	_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic})
	if status.Code(err) == codes.NotFound && c.cfg.Provision {
		_, err = c.client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topic})
		if err == nil {
			c.logg.Warn(c.logg.WithField(ctx, "topic", topic), "pubsub.topic.created")
		}
	}
	return describe("topic", name, err)
}

// EnsureSubscription checks the subscription exists, creating it on the
// requests topic when cfg.Provision is set.
func (c *Client) EnsureSubscription(ctx context.Context, name string) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	sub := resourceName(c.project, "subscriptions", name)
	if sub == "" {
		return fmt.Errorf("subscription %q not configured", name)
	}
	_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: sub})
	if status.Code(err) == codes.NotFound && c.cfg.Provision {
		_, err = c.client.SubscriptionAdminClient.CreateSubscription(ctx, &pubsubpb.Subscription{
			Name:               sub,
			Topic:              resourceName(c.project, "topics", c.cfg.RequestsTopic),
			AckDeadlineSeconds: int32(max(c.cfg.AckDeadlineSec, 10)),
		})
		if err == nil {
			c.logg.Warn(c.logg.WithField(ctx, "subscription", sub), "pubsub.subscription.created")
		}
	}
	return describe("subscription", name, err)
}

func describe(kind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

// Publisher returns nil for a blank name or an unusable client.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	if topic := resourceName(c.project, "topics", name); topic != "" {
		return c.client.Publisher(topic)
	}
	return nil
}

// Subscriber returns a subscriber with flow control applied, or nil for a
// blank name or an unusable client.
func (c *Client) Subscriber(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	sub := resourceName(c.project, "subscriptions", name)
	if sub == "" {
		return nil
	}
	s := c.client.Subscriber(sub)
	if c.cfg.MaxOutstanding > 0 {
		s.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	return s
}

// RequestsSubscriber feeds the notifications worker.
func (c *Client) RequestsSubscriber() *pubsub.Subscriber {
	if c == nil {
		return nil
	}
	return c.Subscriber(c.cfg.RequestsSubscription)
}

// Ping checks the requests topic is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.ensureTopic(ctx, c.cfg.RequestsTopic)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// resourceName expands a bare id to projects/<p>/<kind>/<id> and passes a
// full resource name through. Blank input yields "".
func resourceName(project, kind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+kind+"/") {
		return name
	}
	if project = strings.TrimSpace(project); project == "" {
		return ""
	}
	return "projects/" + project + "/" + kind + "/" + name
}
