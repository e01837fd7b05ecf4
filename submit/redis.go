package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/burrow/types"
)

// DefaultChannel is the default pub/sub channel name.
const DefaultChannel = "burrow:reports"

// DefaultRedisTimeout is the default per-publish timeout.
const DefaultRedisTimeout = 5 * time.Second

// RedisConfig configures the Redis pub/sub submission client.
type RedisConfig struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (default: burrow:reports).
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
}

// Message kinds published on the channel.
const (
	MessageKindReport     = "report"
	MessageKindAttachment = "attachment"
)

// Message is the JSON envelope published for every submission.
type Message struct {
	Kind        string        `json:"kind"`
	RXID        string        `json:"rxid,omitempty"`
	Report      *types.Report `json:"report,omitempty"`
	Attachments []MessagePart `json:"attachments,omitempty"`
}

// MessagePart is an attachment inlined into a Message.
type MessagePart struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// RedisClient publishes submissions to a Redis channel. A publish that
// reaches no subscriber is reported as a server error so the record
// stays queued until a consumer is listening.
type RedisClient struct {
	config RedisConfig
	client *goredis.Client
}

var _ Client = (*RedisClient)(nil)

// NewRedisClient creates a Redis client from cfg.
func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis submission client requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis submission client: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRedisTimeout
	}
	return &RedisClient{config: cfg, client: goredis.NewClient(opts)}, nil
}

// Send implements Client. The report UUID doubles as the rxid.
func (c *RedisClient) Send(ctx context.Context, report *types.Report, attachments []types.Attachment) types.SubmissionResult {
	msg := Message{Kind: MessageKindReport, RXID: report.UUID, Report: report}
	for _, a := range attachments {
		if data, ok := attachmentBytes(a); ok {
			msg.Attachments = append(msg.Attachments, MessagePart{Name: a.Name, Data: data})
		}
	}
	res := c.publish(ctx, msg)
	if res.Status == types.StatusOk {
		res.RXID = report.UUID
	}
	return res
}

// SendAttachment implements Client.
func (c *RedisClient) SendAttachment(ctx context.Context, rxid string, attachment types.Attachment) types.SubmissionResult {
	data, ok := attachmentBytes(attachment)
	if !ok {
		return types.Failed(types.StatusReportSkipped, "attachment has no content")
	}
	return c.publish(ctx, Message{
		Kind:        MessageKindAttachment,
		RXID:        rxid,
		Attachments: []MessagePart{{Name: attachment.Name, Data: data}},
	})
}

func (c *RedisClient) publish(ctx context.Context, msg Message) types.SubmissionResult {
	if res, done := canceled(ctx); done {
		return res
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return types.Failed(types.StatusUnsupported, fmt.Sprintf("marshal message: %v", err))
	}

	publishCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	receivers, err := c.client.Publish(publishCtx, c.config.Channel, body).Result()
	if err != nil {
		return types.Failed(types.StatusNetworkError, err.Error())
	}
	if receivers == 0 {
		return types.Failed(types.StatusServerError, "no subscribers on "+c.config.Channel)
	}
	return types.Ok(msg.RXID)
}

// Close releases client resources.
func (c *RedisClient) Close() error {
	return c.client.Close()
}
