//go:build !wasm
// +build !wasm

// Package gae provides a Google Cloud Datastore implementation of
// authbridge client state persistence. It is designed for hosts deployed on
// Google Cloud Platform and supports multi-tenancy through Datastore
// namespaces.
//
// # Datastore Kinds
//
// The package uses one kind:
//   - ClientState: per-client desktop-redirect intent and session token
//
// # Namespacing
//
// Pass a namespace when creating the store to isolate data between tenants:
//
//	states := gae.NewClientStateStore(client, "tenant-123")
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	states := gae.NewClientStateStore(client, "") // default namespace
//	store := authbridge.NewStore(gateway, states.ForClient(sessionID), config)
package gae
