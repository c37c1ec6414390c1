//go:build !wasm
// +build !wasm

// Package gorm provides a GORM-based implementation of authbridge client
// state persistence. It supports any database that GORM supports
// (PostgreSQL, MySQL, SQLite, etc.) and is suitable for web hosts that keep
// per-session auth state server side.
//
// # Database Schema
//
// The package auto-migrates one table:
//   - auth_client_states: per-client desktop-redirect intent and session token
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{})
//	gormstore.AutoMigrate(db)
//	states := gormstore.NewClientStateStore(db)
//	store := authbridge.NewStore(gateway, states.ForClient(sessionID), config)
package gorm
