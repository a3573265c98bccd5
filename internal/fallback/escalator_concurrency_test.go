package fallback_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"stmtrules/internal/condition"
	"stmtrules/internal/fallback"
)

func TestEscalator_ConcurrentUpdatesKeepSelectAnswering(t *testing.T) {
	e := newEscalator(t, fallback.DefaultConfig(), staticFlags{"ml-classification": true})
	ctx := &condition.Context{Format: "pdf", BankID: "kazkomertsbank"}

	var (
		wg     sync.WaitGroup
		misses atomic.Int64
		stop   = make(chan struct{})
	)
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				enabled := i%2 == 0
				priority := 1 + (i+w)%5
				_, _ = e.UpdateStrategy("ml-first", fallback.StrategyUpdate{Enabled: &enabled, Priority: &priority})
				threshold := 0.5 + float64(i%4)/10
				_, _ = e.UpdateSettings(fallback.SettingsUpdate{AutoSwitchThreshold: &threshold})
				if i%50 == 0 {
					assert.NoError(t, e.SetConfig(fallback.DefaultConfig()))
				}
			}
		}(w)
	}

	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, ok := e.Select(ctx); !ok {
					misses.Add(1)
				}
				if _, ok := e.Select(nil); !ok {
					misses.Add(1)
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	assert.Zero(t, misses.Load())
	assert.Len(t, e.Strategies(), len(fallback.DefaultConfig().Strategies))
}
