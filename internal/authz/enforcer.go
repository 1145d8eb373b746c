// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package authz

import (
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/layersync/internal/auth"
)

// Actions derived from HTTP methods.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// rbacModel is an RBAC model with role inheritance and keyMatch paths.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && r.act == p.act
`

// defaultPolicy lets viewers read everything, editors change layers and
// keys, and admins change projects and resources as well.
const defaultPolicy = `
p, viewer, /api/*, read

p, editor, /api/layers*, write
p, editor, /api/layers*, delete
p, editor, /api/keys*, write
p, editor, /api/keys*, delete

p, admin, /api/*, write
p, admin, /api/*, delete

g, editor, viewer
g, admin, editor
`

// Config configures the enforcer.
type Config struct {
	// PolicyPath is a Casbin policy CSV. Empty uses the built-in policy.
	PolicyPath string
	// DefaultRole applies to requests whose claims carry no role.
	DefaultRole string
}

// Enforcer wraps a Casbin enforcer with the layer API model.
type Enforcer struct {
	enforcer    *casbin.SyncedEnforcer
	defaultRole string
}

// NewEnforcer creates an enforcer from the configured or built-in policy.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" {
		if _, statErr := os.Stat(cfg.PolicyPath); statErr != nil {
			return nil, fmt.Errorf("policy file: %w", statErr)
		}
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicy(enforcer, defaultPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if cfg.DefaultRole == "" {
		cfg.DefaultRole = auth.RoleViewer
	}
	return &Enforcer{enforcer: enforcer, defaultRole: cfg.DefaultRole}, nil
}

// loadPolicy parses policy CSV lines into the enforcer.
func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("invalid policy line %q", line)
		}
	}
	return nil
}

// Enforce reports whether role may perform action on path. An empty role
// uses the default role.
func (e *Enforcer) Enforce(role, path, action string) (bool, error) {
	if role == "" {
		role = e.defaultRole
	}
	allowed, err := e.enforcer.Enforce(role, path, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// AddRoleForUser makes user inherit role, for policies that name users.
func (e *Enforcer) AddRoleForUser(user, role string) error {
	if _, err := e.enforcer.AddGroupingPolicy(user, role); err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	return nil
}
