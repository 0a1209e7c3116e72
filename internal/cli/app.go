package cli

import (
	"github.com/yhsiang/shopledger/internal/config"
	"github.com/yhsiang/shopledger/internal/remote"
	"github.com/yhsiang/shopledger/internal/store"
	syncpkg "github.com/yhsiang/shopledger/internal/sync"
)

// app bundles the wired components behind a command.
type app struct {
	cfg    *config.Config
	db     *store.DB
	handle *remote.Handle
	engine *syncpkg.Engine
}

// newApp opens the local store and builds the engine from the loaded
// configuration.
func newApp(cfg *config.Config) (*app, error) {
	db, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	remoteCfg := remote.Config{
		BaseURL:     cfg.Remote.URL,
		APIKey:      cfg.Remote.APIKey,
		AccessToken: cfg.Remote.AccessToken,
		Timeout:     cfg.Remote.Timeout,
	}
	handle := remote.NewHandle(remoteCfg)

	var feed syncpkg.ChangeFeed
	if remoteCfg.IsConfigured() {
		feed = remote.NewNotifier(remoteCfg)
	}

	engine := syncpkg.New(
		store.NewRepository(db.DB),
		syncpkg.NewHandleRemote(handle),
		feed,
		syncpkg.Options{DebounceWindow: cfg.Sync.DebounceWindow},
	)

	return &app{cfg: cfg, db: db, handle: handle, engine: engine}, nil
}

// Close releases the engine and the local store.
func (a *app) Close() {
	a.engine.Close()
	a.db.Close()
}
