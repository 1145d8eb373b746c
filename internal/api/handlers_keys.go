// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
)

// keyEventBuffer bounds the events queued for one slow SSE client.
const keyEventBuffer = 64

// sseKeepAlive is the interval of SSE comment lines on idle streams.
const sseKeepAlive = 30 * time.Second

// Keys lists the key directory.
func (h *Handler) Keys(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.GetKeys(ctx, meta, cb)
	}, func(res *models.CallbackResult) any {
		if res.Keys == nil {
			return map[string]*models.Key{}
		}
		return res.Keys
	})
}

// KeyResponse is the payload of GET /keys/{keyId}.
type KeyResponse struct {
	Key   *models.Key     `json:"key"`
	Value models.KeyValue `json:"value"`
}

// GetKey returns a key's entry and value.
func (h *Handler) GetKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyId")
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.GetKey(ctx, keyID, meta, cb)
	}, func(res *models.CallbackResult) any {
		return &KeyResponse{Key: res.Keys[keyID], Value: res.Value}
	})
}

// UpdateKey writes the JSON object in the body to a key, creating the key
// when needed.
func (h *Handler) UpdateKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyId")
	if !validID(w, keyID) {
		return
	}
	var value models.KeyValue
	if !decodeBody(w, r, &value) {
		return
	}
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.UpdateKey(ctx, keyID, value, meta, cb)
	}, nil)
}

// DeleteKey removes a key.
func (h *Handler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyId")
	h.dispatch(w, r, func(ctx context.Context, meta models.Meta, cb models.Callback) {
		h.manager.DeleteKey(ctx, keyID, meta, cb)
	}, nil)
}

// KeyEvents streams writes to keys matching ?pattern= (default "*") as
// server-sent events until the client disconnects. Events that do not fit
// the client's buffer are dropped.
func (h *Handler) KeyEvents(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}
	ctx := r.Context()
	rc := http.NewResponseController(w)

	events := make(chan *models.CallbackResult, keyEventBuffer)
	failed := make(chan *models.CallbackResult, 1)
	h.manager.SubscribeKey(ctx, pattern, requestMeta(r), func(res *models.CallbackResult) {
		if !res.IsOK() {
			select {
			case failed <- res:
			default:
			}
			return
		}
		select {
		case events <- res:
		default:
			logging.Debug().Str("pattern", pattern).Msg("Key event dropped for slow SSE client")
		}
	})

	// An invalid pattern is reported synchronously.
	select {
	case res := <-failed:
		respondError(w, res.Result.HTTPStatus(), res.Result.String(), res.Error, nil)
		return
	default:
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_ = rc.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			_ = rc.Flush()
		case res := <-events:
			for id := range res.Keys {
				data, err := json.Marshal(&struct {
					KeyID string          `json:"keyId"`
					Value models.KeyValue `json:"value"`
				}{id, res.Value})
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "event: key\ndata: %s\n\n", data); err != nil {
					return
				}
			}
			_ = rc.Flush()
		}
	}
}
