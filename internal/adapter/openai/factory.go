package openai

import (
	"sync"

	"github.com/Strob0t/sketchforge/internal/config"
	"github.com/Strob0t/sketchforge/internal/port/aiplatform"
	"github.com/Strob0t/sketchforge/internal/resilience"
)

// NewFactory returns a Platform factory that reuses one client, and so one
// circuit breaker, per API key.
func NewFactory(cfg config.OpenAI, brk config.Breaker) aiplatform.Factory {
	var (
		mu      sync.Mutex
		clients = make(map[string]*Client)
	)
	return func(apiKey string) aiplatform.Platform {
		key := config.Fingerprint(apiKey)

		mu.Lock()
		defer mu.Unlock()
		if c, ok := clients[key]; ok {
			return c
		}
		c := NewClient(cfg.BaseURL, apiKey, cfg.Timeout)
		c.SetBreaker(resilience.NewBreaker(brk.MaxFailures, brk.Timeout))
		clients[key] = c
		return c
	}
}
