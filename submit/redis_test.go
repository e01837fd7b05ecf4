package submit_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/pithecene-io/burrow/iox"
	"github.com/pithecene-io/burrow/submit"
	"github.com/pithecene-io/burrow/types"
)

// asyncReceive starts a goroutine that reads one message from the subscriber
// and sends it to the returned channel. Must be called BEFORE Publish to avoid
// deadlocking miniredis's synchronous pub/sub delivery.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) submit.Message {
	t.Helper()
	select {
	case msg := <-ch:
		var m submit.Message
		if err := json.Unmarshal([]byte(msg.Message), &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return submit.Message{}
	}
}

func mustNewRedisClient(t *testing.T, cfg submit.RedisConfig) *submit.RedisClient {
	t.Helper()
	c, err := submit.NewRedisClient(cfg)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(iox.CloseFunc(c))
	return c
}

func TestRedisClient_Send(t *testing.T) {
	mr := miniredis.RunT(t)
	c := mustNewRedisClient(t, submit.RedisConfig{URL: "redis://" + mr.Addr()})

	sub := mr.NewSubscriber()
	sub.Subscribe(submit.DefaultChannel)
	ch := asyncReceive(sub)

	res := c.Send(t.Context(), testReport(), []types.Attachment{{Name: "note", Data: []byte("hi")}})
	if res.Status != types.StatusOk {
		t.Fatalf("status = %q (%s)", res.Status, res.Message)
	}
	if res.RXID != "report-001" {
		t.Errorf("rxid = %q, want report uuid", res.RXID)
	}

	msg := waitMessage(t, ch)
	if msg.Kind != submit.MessageKindReport || msg.Report == nil || msg.Report.UUID != "report-001" {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.Attachments) != 1 || string(msg.Attachments[0].Data) != "hi" {
		t.Errorf("attachments = %+v", msg.Attachments)
	}
}

func TestRedisClient_SendAttachment(t *testing.T) {
	mr := miniredis.RunT(t)
	c := mustNewRedisClient(t, submit.RedisConfig{URL: "redis://" + mr.Addr(), Channel: "custom"})

	sub := mr.NewSubscriber()
	sub.Subscribe("custom")
	ch := asyncReceive(sub)

	res := c.SendAttachment(t.Context(), "rx-7", types.Attachment{Name: "dump", Data: []byte{1, 2}})
	if res.Status != types.StatusOk {
		t.Fatalf("status = %q", res.Status)
	}
	msg := waitMessage(t, ch)
	if msg.Kind != submit.MessageKindAttachment || msg.RXID != "rx-7" {
		t.Errorf("message = %+v", msg)
	}
}

func TestRedisClient_NoSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	c := mustNewRedisClient(t, submit.RedisConfig{URL: "redis://" + mr.Addr()})

	if got := c.Send(t.Context(), testReport(), nil).Status; got != types.StatusServerError {
		t.Errorf("status = %q, want Server Error", got)
	}
}

func TestRedisClient_ConnectionFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c := mustNewRedisClient(t, submit.RedisConfig{URL: "redis://" + addr, Timeout: 200 * time.Millisecond})
	if got := c.Send(t.Context(), testReport(), nil).Status; got != types.StatusNetworkError {
		t.Errorf("status = %q, want Network Error", got)
	}
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	if _, err := submit.NewRedisClient(submit.RedisConfig{}); err == nil {
		t.Error("expected error for empty URL")
	}
	if _, err := submit.NewRedisClient(submit.RedisConfig{URL: "http://not-redis"}); err == nil {
		t.Error("expected error for invalid scheme")
	}
}
