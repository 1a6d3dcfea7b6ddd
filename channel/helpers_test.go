package channel

import (
	"code-mentor/contract"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder collects updates delivered to a listener.
type recorder struct {
	mu      sync.Mutex
	updates []contract.Update
}

func (r *recorder) listen(u contract.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) all() []contract.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]contract.Update, len(r.updates))
	copy(out, r.updates)
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recorder) last() contract.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return contract.Update{}
	}
	return r.updates[len(r.updates)-1]
}

// waitFor blocks until the latest update holds n messages.
func (r *recorder) waitFor(t *testing.T, n int) contract.Update {
	t.Helper()
	require.Eventually(t, func() bool {
		if r.count() == 0 {
			return false
		}
		u := r.last()
		return u.Err == nil && len(u.Messages) == n
	}, 2*time.Second, 5*time.Millisecond)
	return r.last()
}
