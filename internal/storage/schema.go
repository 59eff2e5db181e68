package storage

import _ "embed"

// Schema is the full DDL for the relational store. Integration tests apply it
// to a fresh database; deployments apply it out of band.
//
//go:embed schema.sql
var Schema string
