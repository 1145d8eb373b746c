// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package storage

import (
	"reflect"
	"sort"

	"github.com/tomtom215/layersync/internal/models"
)

// ApplyUpdate returns the feature that results from writing incoming over
// existing (which may be nil). Existing logs are kept and incoming logs are
// merged into them. With useLog every new or changed property is logged with
// the given user and timestamp.
func ApplyUpdate(existing, incoming *models.Feature, useLog bool, user string, now int64) *models.Feature {
	next := incoming.Clone()
	if next.Type == "" {
		next.Type = models.FeatureType
	}
	if next.Properties == nil {
		next.Properties = map[string]any{}
	}

	var logs map[string][]models.Log
	if existing != nil {
		logs = models.CloneLogs(existing.Logs)
	}
	next.Logs = nil

	if useLog {
		for _, prop := range sortedProps(next.Properties) {
			value := next.Properties[prop]
			if existing != nil {
				if old, ok := existing.Properties[prop]; ok && reflect.DeepEqual(old, value) {
					continue
				}
			}
			if logs == nil {
				logs = map[string][]models.Log{}
			}
			logs[prop] = append(logs[prop], models.Log{TS: now, Prop: prop, Value: value, User: user})
		}
	}

	next.Logs = logs
	if len(incoming.Logs) > 0 {
		MergeLogs(next, incoming.Logs)
	}
	models.SortLogs(next.Logs)
	return next
}

// MergeLogs adds log entries to f. An entry with the same timestamp as an
// existing one for the property replaces it. Each touched property is set to
// the value of its newest entry.
func MergeLogs(f *models.Feature, logs map[string][]models.Log) {
	if f.Logs == nil {
		f.Logs = map[string][]models.Log{}
	}
	if f.Properties == nil {
		f.Properties = map[string]any{}
	}
	for prop, entries := range logs {
		if len(entries) == 0 {
			continue
		}
		current := f.Logs[prop]
		for _, entry := range entries {
			if entry.Prop == "" {
				entry.Prop = prop
			}
			replaced := false
			for i := range current {
				if current[i].TS == entry.TS {
					current[i] = entry
					replaced = true
					break
				}
			}
			if !replaced {
				current = append(current, entry)
			}
		}
		sort.SliceStable(current, func(i, j int) bool { return current[i].TS < current[j].TS })
		f.Logs[prop] = current
		f.Properties[prop] = current[len(current)-1].Value
	}
}

// DeleteLog removes the entries of property with timestamp ts and reports
// whether any were removed. An emptied property log is dropped.
func DeleteLog(f *models.Feature, ts int64, property string) bool {
	entries, ok := f.Logs[property]
	if !ok {
		return false
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.TS != ts {
			kept = append(kept, e)
		}
	}
	removed := len(kept) != len(entries)
	if len(kept) == 0 {
		delete(f.Logs, property)
	} else {
		f.Logs[property] = kept
	}
	return removed
}

// SetProperty sets one property, logging the change when useLog is set.
func SetProperty(f *models.Feature, property string, value any, useLog bool, user string, now int64) {
	if f.Properties == nil {
		f.Properties = map[string]any{}
	}
	f.Properties[property] = value
	if useLog {
		MergeLogs(f, map[string][]models.Log{
			property: {{TS: now, Prop: property, Value: value, User: user}},
		})
	}
}

func sortedProps(props map[string]any) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
