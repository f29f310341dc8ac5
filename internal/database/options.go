package database

import (
	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/schema"
	"github.com/loykin/catalogdb/internal/store"
)

type Option func(*Service)

// WithEnv sets the source the configuration is resolved from.
func WithEnv(env dbconfig.Env) Option {
	return func(s *Service) {
		if env != nil {
			s.env = env
		}
	}
}

// WithWorkingDir sets the directory relative sqlite paths and the project
// directory placeholder resolve against.
func WithWorkingDir(dir string) Option {
	return func(s *Service) { s.cwd = dir }
}

func WithFactory(f store.Func) Option {
	return func(s *Service) {
		if f != nil {
			s.factory = f
		}
	}
}

// WithMigrations replaces the embedded catalog schema.
func WithMigrations(src schema.Source) Option {
	return func(s *Service) {
		if src != nil {
			s.migrations = src
		}
	}
}

func WithMigrationTable(name string) Option {
	return func(s *Service) { s.migrationTable = name }
}

func WithLogger(l *common.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
