package main

import (
	"code-mentor/channel"
	"code-mentor/contract"
	"code-mentor/internal"
	"code-mentor/moderation"
	"code-mentor/remote"
	"code-mentor/repositories"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// backend is everything a chat front end needs, plus how to release it.
type backend struct {
	channel contract.Channel
	store   *remote.RedisStore
	close   func()
}

func openBackend(ctx context.Context, config internal.Config, log *slog.Logger) (*backend, error) {
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}
	closers := []func(){func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}}
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := channel.Deps{
		Log:         log,
		Cache:       repositories.NewCacheRepository(db, log, config.MaxCachedMessages),
		EchoDelay:   config.EchoDelay,
		MaxMessages: config.MaxCachedMessages,
	}
	b := &backend{}
	if channel.Backend(config.ChatBackend) == channel.BackendRemote {
		store, err := remote.NewRedisStoreFromURL(config.RedisURL, log)
		if err != nil {
			release()
			return nil, configError{err}
		}
		closers = append(closers, func() { _ = store.Close() })
		deps.Store = store
		b.store = store
	}

	ch, err := channel.New(ctx, channel.Backend(config.ChatBackend), deps)
	if err != nil {
		release()
		return nil, err
	}
	closers = append(closers, func() { _ = ch.Close() })
	b.channel = ch
	b.close = release
	return b, nil
}

// newModerator is nil when no word is configured.
func newModerator(config internal.Config, log *slog.Logger) (*moderation.Moderator, error) {
	words := config.Words()
	if len(words) == 0 {
		return nil, nil
	}
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, configError{err}
	}
	return moderation.NewModerator(words, replacement, log)
}

func loadServerConfig() (internal.Config, error) {
	config, err := internal.LoadConfig()
	if err != nil {
		return internal.Config{}, configError{err}
	}
	return config, nil
}
