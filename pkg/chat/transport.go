package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type Message struct {
	ID         string
	Text       string
	Sender     string
	SenderName string
}

// Player is the name a sender is tracked under in game rosters.
func (m Message) Player() string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.Sender
}

// Transport connects the bot to one group conversation.
type Transport interface {
	Receive(ctx context.Context) (<-chan Message, error)
	SendText(ctx context.Context, text string) error
	SendImage(ctx context.Context, image []byte, caption string) error
}

// ConsoleTransport reads "name: text" lines and prints replies. Lines without a name are
// attributed to DefaultSender.
type ConsoleTransport struct {
	DefaultSender string

	in  io.Reader
	mu  sync.Mutex
	out io.Writer
}

func NewConsoleTransport(in io.Reader, out io.Writer) *ConsoleTransport {
	return &ConsoleTransport{DefaultSender: "console", in: in, out: out}
}

func (c *ConsoleTransport) Receive(ctx context.Context) (<-chan Message, error) {
	messages := make(chan Message)
	go func() {
		defer close(messages)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			sender, text := c.DefaultSender, line
			if name, rest, found := strings.Cut(line, ":"); found && !strings.HasPrefix(name, commandPrefix) && strings.TrimSpace(name) != "" {
				sender, text = strings.TrimSpace(name), strings.TrimSpace(rest)
			}
			message := Message{ID: uuid.NewString(), Text: text, Sender: sender, SenderName: sender}
			select {
			case messages <- message:
			case <-ctx.Done():
				return
			}
		}
	}()
	return messages, nil
}

func (c *ConsoleTransport) SendText(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "courtbot> %s\n", text)
	return err
}

func (c *ConsoleTransport) SendImage(ctx context.Context, image []byte, caption string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "courtbot> [image, %d bytes] %s\n", len(image), caption)
	return err
}
