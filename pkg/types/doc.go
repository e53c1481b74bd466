// Package types provides shared type definitions for docgraph.
//
// This package defines the domain vocabulary used across the indexer,
// searcher, graph and transport layers: document categories, task
// status/priority enums, the open-schema Metadata bag and the DTOs returned
// to callers.
//
// # Metadata
//
// Document metadata is open-schema but typed. Every value is a MetaValue
// holding either a string, a number or a list of strings:
//
//	meta := types.Metadata{
//	    types.MetaStatus: types.StringValue("ACTIVE"),
//	    types.MetaTags:   types.ListValue([]string{"backend", "urgent"}),
//	    "estimate":       types.NumberValue(3),
//	}
//
//	status, ok := meta.Status()
//	tags := meta.Tags()
//
// Unknown keys survive a JSON round trip unchanged, so new meta tags in
// source documents need no schema change.
//
// # Enumerations
//
// Status and priority values are normalized to upper case before
// validation. Unrecognized values fall back to DefaultStatus (PENDING) and
// DefaultPriority (MEDIUM):
//
//	st, valid := types.ParseStatus("resolved") // RESOLVED, true
//	st, valid = types.ParseStatus("done")      // PENDING, false
package types
