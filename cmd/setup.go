package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/freight-cli/internal/detect"
	"github.com/sells-group/freight-cli/internal/engine"
	"github.com/sells-group/freight-cli/internal/grammar"
	"github.com/sells-group/freight-cli/internal/normalize"
	"github.com/sells-group/freight-cli/internal/pipeline"
	"github.com/sells-group/freight-cli/internal/store"
	"github.com/sells-group/freight-cli/internal/textlayer"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "freight.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		var poolCfg *store.PoolConfig
		if cfg.Store.Pool != nil {
			poolCfg = &store.PoolConfig{
				MaxConns: cfg.Store.Pool.MaxConns,
				MinConns: cfg.Store.Pool.MinConns,
			}
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, poolCfg)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initRegistry loads the built-in grammars plus any operator-supplied
// definitions from the configured directory.
func initRegistry() (*grammar.Registry, error) {
	r := grammar.NewRegistry()
	if err := grammar.LoadBuiltins(r); err != nil {
		return nil, eris.Wrap(err, "load built-in grammars")
	}
	if cfg.Grammars.Dir != "" {
		if err := grammar.LoadDir(r, cfg.Grammars.Dir); err != nil {
			return nil, eris.Wrapf(err, "load grammars from %s", cfg.Grammars.Dir)
		}
		zap.L().Info("loaded extra grammars", zap.String("dir", cfg.Grammars.Dir))
	}
	return r, nil
}

func initProcessor(st store.Store) (*pipeline.Processor, error) {
	r, err := initRegistry()
	if err != nil {
		return nil, err
	}

	eng := engine.New(
		textlayer.New(textlayer.Options{SheetIndex: cfg.Extract.SheetIndex}),
		detect.New(r),
		r,
	)
	n := normalize.New(normalize.Options{
		SubtotalTolerance:  cfg.Extract.SubtotalTolerance,
		ConsistencyPenalty: cfg.Extract.ConsistencyPenalty,
	})
	return pipeline.New(eng, n, st), nil
}
