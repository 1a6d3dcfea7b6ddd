// Package channel implements the two chat backends behind contract.Channel.
package channel

import (
	"code-mentor/contract"
	"code-mentor/errors"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Backend selects the implementation returned by New.
type Backend string

const (
	BackendLocal  Backend = "local"
	BackendRemote Backend = "remote"
)

type Deps struct {
	Log         *slog.Logger
	Cache       contract.LocalCache
	Store       contract.RemoteStore
	EchoDelay   time.Duration
	MaxMessages int
}

// New builds the channel for backend. Callers only ever see contract.Channel.
func New(ctx context.Context, backend Backend, deps Deps) (contract.Channel, error) {
	switch backend {
	case BackendLocal:
		if deps.Cache == nil {
			return nil, fmt.Errorf("local backend requires a cache")
		}
		opts := []LocalOption{WithMaxMessages(deps.MaxMessages)}
		if deps.EchoDelay > 0 {
			opts = append(opts, WithEchoDelay(deps.EchoDelay))
		}
		return NewLocalChannel(ctx, deps.Cache, deps.Log, opts...), nil
	case BackendRemote:
		if deps.Store == nil {
			return nil, fmt.Errorf("remote backend requires a store")
		}
		return NewRemoteChannel(deps.Store, deps.Log), nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownBackend, backend)
	}
}
