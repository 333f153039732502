package main

import (
	"context"
	"time"

	"github.com/tuannm99/novaquery"
	"github.com/tuannm99/novaquery/internal/sql/executor"
	"github.com/tuannm99/novaquery/sqlclient"
)

// runner executes statement text for the shell, either in-process or
// against a server.
type runner interface {
	Exec(sql string) (*executor.Result, error)
	Explain(sql string) (string, error)
	Close() error
}

type localRunner struct {
	db *novaquery.DB
}

func (r localRunner) Exec(sql string) (*executor.Result, error) { return r.db.Exec(sql) }
func (r localRunner) Explain(sql string) (string, error)        { return r.db.Explain(sql) }
func (r localRunner) Close() error                              { return nil }

type remoteRunner struct {
	cli *sqlclient.Client
}

func dialRunner(addr string, timeout time.Duration) (*remoteRunner, error) {
	cli, err := sqlclient.Dial(context.Background(), addr,
		sqlclient.WithDialTimeout(timeout), sqlclient.WithRequestTimeout(timeout))
	if err != nil {
		return nil, err
	}
	return &remoteRunner{cli: cli}, nil
}

func (r *remoteRunner) Exec(sql string) (*executor.Result, error) {
	return r.cli.Exec(context.Background(), sql)
}

func (r *remoteRunner) Explain(sql string) (string, error) {
	return r.cli.Explain(context.Background(), sql)
}

func (r *remoteRunner) Close() error { return r.cli.Close() }

// openRunner dials addr when set, and opens the configured database otherwise.
func openRunner(addr string, timeout time.Duration) (runner, error) {
	if addr != "" {
		return dialRunner(addr, timeout)
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return localRunner{db: db}, nil
}
