// Package scope deduplicates (resource type, resource id, permission type)
// triples into canonical scope rows shared by grants and documents.
package scope

import (
	"time"

	"github.com/google/uuid"
)

// ID identifies a canonical scope row.
type ID string

func NewID() ID { return ID(uuid.NewString()) }

func (id ID) String() string { return string(id) }

// ResourceType enumerates the resources a permission can target.
type ResourceType string

const (
	ResourceMeteringPoint ResourceType = "MeteringPoint"
	ResourceOrganization  ResourceType = "Organization"
	ResourcePerson        ResourceType = "Person"
)

// PermissionType enumerates what a grant allows on the resource.
type PermissionType string

const (
	PermissionChangeOfSupplier PermissionType = "ChangeOfSupplier"
	PermissionFullDelegation   PermissionType = "FullDelegation"
	PermissionReadAccess       PermissionType = "ReadAccess"
)

// Key is the natural key of a scope. Exactly one row exists per key,
// enforced by a uniqueness constraint rather than application locking.
type Key struct {
	ResourceType   ResourceType
	ResourceID     string
	PermissionType PermissionType
}

// Scope is an immutable, shared reference row. Many grants and documents
// reference the same scope through join rows.
type Scope struct {
	ID             ID
	ResourceType   ResourceType
	ResourceID     string
	PermissionType PermissionType
	CreatedAt      time.Time
}

// Key returns the natural key of the scope.
func (s Scope) Key() Key {
	return Key{
		ResourceType:   s.ResourceType,
		ResourceID:     s.ResourceID,
		PermissionType: s.PermissionType,
	}
}
