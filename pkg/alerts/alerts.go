// Package alerts remembers which games already triggered a booking so a game never fires twice.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/valkey-io/valkey-go"
)

const defaultKeyLiteral = "courtbot:alerted"

type Set interface {
	// MarkIfNew records id and reports true only for the first caller.
	MarkIfNew(ctx context.Context, id string) (bool, error)
	// Clear forgets id so a later threshold crossing can fire again.
	Clear(ctx context.Context, id string) error
}

type MemorySet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemorySet() *MemorySet {
	return &MemorySet{seen: make(map[string]struct{})}
}

func (s *MemorySet) MarkIfNew(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false, nil
	}
	s.seen[id] = struct{}{}
	return true, nil
}

func (s *MemorySet) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, id)
	return nil
}

// ValkeySet keeps the ids in one Valkey set so several bot processes share it.
type ValkeySet struct {
	client valkey.Client
	key    string
}

func NewValkeySet(client valkey.Client, key string) *ValkeySet {
	if key == "" {
		key = defaultKeyLiteral
	}
	return &ValkeySet{client: client, key: key}
}

func (s *ValkeySet) MarkIfNew(ctx context.Context, id string) (bool, error) {
	added, err := s.client.Do(ctx, s.client.B().Sadd().Key(s.key).Member(id).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("sadd %s: %w", s.key, err)
	}
	return added == 1, nil
}

func (s *ValkeySet) Clear(ctx context.Context, id string) error {
	if err := s.client.Do(ctx, s.client.B().Srem().Key(s.key).Member(id).Build()).Error(); err != nil {
		return fmt.Errorf("srem %s: %w", s.key, err)
	}
	return nil
}

// Dial connects to addr (host:port or a redis:// URL) and pings it.
func Dial(ctx context.Context, addr string) (valkey.Client, error) {
	var (
		option valkey.ClientOption
		err    error
	)
	if strings.Contains(addr, "://") {
		option, err = valkey.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse valkey url: %w", err)
		}
	} else {
		option = valkey.ClientOption{InitAddress: []string{addr}}
	}
	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}
	pingContext, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Do(pingContext, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}
	return client, nil
}
