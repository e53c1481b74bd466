// Package graph infers weighted references between documents and serves
// the resulting node/link graph.
//
// InferReferences is a pure O(n²) pass over every ordered document pair.
// Four independent signals add to an edge's weight:
//
//	title of other appears in content (case-insensitive)  +0.4
//	path of other appears verbatim in content             +0.3
//	same first two directory segments                     +0.2
//	explicit link, connection or "Related Tasks:" entry   +0.5
//
// Weights are not capped. Inferencer.Run stores the result, replacing the
// previous reference set; Service.Graph recomputes it on demand behind an
// expiring cache.
package graph
