// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

/*
Package manager is the dispatch hub of layersync.

The Manager owns three directories (layers, projects and keys), routes every
operation to the storage connector that owns the entity, and fans mutations
out to the interface connectors so connected clients and peer instances see
them.

# Directories

The layer and project directories are persisted as JSON files and saved on a
debounce: a burst of changes produces one write once the burst has been quiet
for SaveDelay, and that write sees the latest state. Close flushes pending
writes. The key directory lives in memory and is rebuilt from storage with
SyncKeys.

# Ordering

Additions update the directory before storage is called, so a concurrent
lookup already sees the new entity. Deletions remove the directory entry only
when the owning storage connector reports back; a delete whose storage never
answers leaves the directory untouched.

# Callbacks

Every operation reports through its callback exactly once. The callback may
run on the caller's goroutine or on one owned by the storage connector.
Interface connector results never reach the caller; they are logged and
counted by the fan-out.

# Thread Safety

All methods are safe for concurrent use. Directory access is guarded by a
sync.RWMutex that is never held while a connector is called.
*/
package manager
