// Package pubsub wraps the Pub/Sub v2 client with the topics and
// subscriptions the logistics services use.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/benefits-logistics/pkg/config"
	"github.com/angelmondragon/benefits-logistics/pkg/gcp"
	"github.com/angelmondragon/benefits-logistics/pkg/logger"
)

const lookupTimeout = 10 * time.Second

type resourceKind string

const (
	kindTopic        resourceKind = "topics"
	kindSubscription resourceKind = "subscriptions"
)

type Client struct {
	client    *pubsub.Client
	projectID string
	cfg       config.PubSubConfig
}

// NewClient dials Pub/Sub and fails when a configured topic or subscription
// is missing.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcpCfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("gcp project id is required")
	}
	conn, err := pubsub.NewClient(ctx, projectID, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	c := &Client{client: conn, projectID: projectID, cfg: cfg}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "project_id", projectID), "pubsub client ready")
	}
	return c, nil
}

// Ping looks up every configured topic and subscription.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	topics, subs := configured(c.cfg)
	if len(subs) == 0 {
		return errors.New("at least one pubsub subscription is required")
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	for _, topic := range topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{
			Topic: c.resourceName(kindTopic, topic),
		})
		if err := lookupErr(kindTopic, topic, err); err != nil {
			return err
		}
	}
	for _, sub := range subs {
		_, err := c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{
			Subscription: c.resourceName(kindSubscription, sub),
		})
		if err := lookupErr(kindSubscription, sub, err); err != nil {
			return err
		}
	}
	return nil
}

func lookupErr(kind resourceKind, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case status.Code(err) == codes.NotFound:
		return fmt.Errorf("pubsub %s %q does not exist", strings.TrimSuffix(string(kind), "s"), name)
	default:
		return fmt.Errorf("look up pubsub %s %q: %w", strings.TrimSuffix(string(kind), "s"), name, err)
	}
}

// Subscription returns a subscriber for a subscription id or full resource
// name, or nil when the name is blank.
func (c *Client) Subscription(name string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName(kindSubscription, name)
	if full == "" {
		return nil
	}
	sub := c.client.Subscriber(full)
	if c.cfg.MaxOutstanding > 0 {
		sub.ReceiveSettings.MaxOutstandingMessages = c.cfg.MaxOutstanding
	}
	return sub
}

func (c *Client) LogisticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.LogisticsSubscription)
}

func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns a publisher for a topic id or full resource name.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := c.resourceName(kindTopic, name)
	if full == "" {
		return nil
	}
	return c.client.Publisher(full)
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func configured(cfg config.PubSubConfig) (topics, subs []string) {
	for _, name := range []string{cfg.LogisticsTopic, cfg.AnalyticsTopic} {
		if name = strings.TrimSpace(name); name != "" {
			topics = append(topics, name)
		}
	}
	for _, name := range []string{cfg.LogisticsSubscription, cfg.AnalyticsSubscription} {
		if name = strings.TrimSpace(name); name != "" {
			subs = append(subs, name)
		}
	}
	return topics, subs
}

// resourceName expands an id to projects/<project>/<kind>/<id>. Names that
// are already fully qualified pass through.
func (c *Client) resourceName(kind resourceKind, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || c.projectID == "" {
		return ""
	}
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/"+string(kind)+"/") {
		return name
	}
	return "projects/" + c.projectID + "/" + string(kind) + "/" + name
}
