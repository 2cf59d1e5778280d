package monitoring

import (
	"fmt"
	"log"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type capture struct {
	mu    sync.Mutex
	lines []string
}

func (c *capture) logf(format string, v ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func TestComponent_PrefixesLines(t *testing.T) {
	defer SetLogger(log.Printf)

	c := &capture{}
	SetLogger(c.logf)

	Component("SessionTracker").Printf("section %d closed", 7)
	Logf("untagged %s", "line")

	assert.Equal(t, []string{"[SessionTracker] section 7 closed", "untagged line"}, c.lines)
}

func TestSetLogger_SwapAfterCreation(t *testing.T) {
	defer SetLogger(log.Printf)

	logger := Component("Settings")
	first, second := &capture{}, &capture{}

	SetLogger(first.logf)
	logger.Printf("one")
	SetLogger(second.logf)
	logger.Printf("two")

	assert.Equal(t, []string{"[Settings] one"}, first.lines)
	assert.Equal(t, []string{"[Settings] two"}, second.lines)
}

func TestSetLogger_NilMutes(t *testing.T) {
	defer SetLogger(log.Printf)

	SetLogger(nil)
	assert.NotPanics(t, func() {
		Component("HTTP").Printf("dropped %d", 1)
		Logf("dropped")
	})
}

func TestSetLogger_ConcurrentUse(t *testing.T) {
	defer SetLogger(log.Printf)

	c := &capture{}
	SetLogger(c.logf)
	logger := Component("RateLimit")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Printf("worker %d", i)
			SetLogger(c.logf)
		}(i)
	}
	wg.Wait()
	assert.Len(t, c.lines, 8)
}
