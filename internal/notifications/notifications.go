// Package notifications pushes alerts to an ntfy topic.
package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultCooldown = 30 * time.Minute

// Client publishes to one ntfy topic. An identical title and message sent
// again within Cooldown is dropped, so a tank that stays empty alerts once.
type Client struct {
	URL      string
	Topic    string
	Cooldown time.Duration

	http *http.Client
	now  func() time.Time

	mu   sync.Mutex
	sent map[string]time.Time
}

func NewClient(topic string) *Client {
	return &Client{
		URL:      "https://ntfy.sh",
		Topic:    topic,
		Cooldown: DefaultCooldown,
		http:     &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		sent:     make(map[string]time.Time),
	}
}

type message struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Tags     []string `json:"tags"`
	Priority int      `json:"priority"`
}

// priority maps alert titles to ntfy priorities: failures are urgent,
// recoveries are informational.
func priority(title string) int {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "recovered"):
		return 3
	case strings.Contains(lower, "failure"), strings.Contains(lower, "empty"):
		return 5
	default:
		return 4
	}
}

func (c *Client) suppressed(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if last, ok := c.sent[key]; ok && now.Sub(last) < c.Cooldown {
		return true
	}
	c.sent[key] = now
	return false
}

// Send publishes title and message as JSON on the ntfy root URL.
func (c *Client) Send(title, body string) error {
	if c.suppressed(title + "\x00" + body) {
		log.Debug().Str("title", title).Msg("Duplicate notification suppressed")
		return nil
	}

	jsonData, err := json.Marshal(message{
		Topic:    c.Topic,
		Title:    title,
		Message:  body,
		Tags:     []string{"seedling"},
		Priority: priority(title),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.forget(title + "\x00" + body)
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.forget(title + "\x00" + body)
		return fmt.Errorf("ntfy returned non-success status: %d", resp.StatusCode)
	}

	log.Debug().
		Str("title", title).
		Int("status", resp.StatusCode).
		Msg("Notification sent")
	return nil
}

// forget lets a failed publish be retried before the cooldown expires.
func (c *Client) forget(key string) {
	c.mu.Lock()
	delete(c.sent, key)
	c.mu.Unlock()
}

var defaultClient *Client

// Init configures the process-wide client. An empty topic leaves
// notifications disabled.
func Init(ntfyTopic string) {
	defaultClient = nil
	if ntfyTopic == "" {
		log.Warn().Msg("Ntfy topic not configured - notifications disabled")
		return
	}
	defaultClient = NewClient(ntfyTopic)
	log.Info().Str("topic", ntfyTopic).Msg("Ntfy notifications initialized")
}

func Enabled() bool {
	return defaultClient != nil
}

// Send publishes through the process-wide client.
func Send(title, message string) error {
	if defaultClient == nil {
		return fmt.Errorf("notifications not initialized")
	}
	return defaultClient.Send(title, message)
}
