package parameters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound     = errors.New("parameter not found")
	ErrInvalidValue = errors.New("parameter has an invalid value")
)

// Source resolves a named configuration entry to its raw string value.
type Source interface {
	Get(ctx context.Context, name string) (string, error)
}

// Names holds the fully qualified entry names, e.g. /secure-payments/dev/MAX_AMOUNT.
type Names struct {
	MaskPattern string
	MaxAmount   string
}

type cachedValue struct {
	value     string
	expiresAt time.Time
}

// Provider reads the mask pattern and max amount from a Source. Values are cached for at
// most ttl so external edits take effect without a redeploy; a zero ttl disables caching.
type Provider struct {
	source Source
	names  Names
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cachedValue
}

func NewProvider(source Source, names Names, ttl time.Duration) *Provider {
	return &Provider{
		source: source,
		names:  names,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cachedValue),
	}
}

// WithClock swaps the time source; used by tests.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

func (p *Provider) MaskPattern(ctx context.Context) (string, error) {
	value, err := p.get(ctx, p.names.MaskPattern)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrInvalidValue, p.names.MaskPattern)
	}
	return value, nil
}

func (p *Provider) MaxAmount(ctx context.Context) (int64, error) {
	value, err := p.get(ctx, p.names.MaxAmount)
	if err != nil {
		return 0, err
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || amount <= 0 {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidValue, p.names.MaxAmount, value)
	}
	return amount, nil
}

// Invalidate drops every cached value.
func (p *Provider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]cachedValue)
}

func (p *Provider) get(ctx context.Context, name string) (string, error) {
	if p.ttl > 0 {
		p.mu.Lock()
		cached, ok := p.cache[name]
		p.mu.Unlock()
		if ok && p.now().Before(cached.expiresAt) {
			return cached.value, nil
		}
	}

	value, err := p.source.Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}

	if p.ttl > 0 {
		p.mu.Lock()
		p.cache[name] = cachedValue{value: value, expiresAt: p.now().Add(p.ttl)}
		p.mu.Unlock()
	}
	return value, nil
}
