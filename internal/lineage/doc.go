// Package lineage provides the in-memory cell lineage graph.
//
// A Graph holds spots (nodes) keyed by integer ID and the links between
// them (edges) in insertion order, with parent and children adjacency maps
// for degree and ancestry queries. Graph-level metadata (units and the
// feature declaration registry) lives in a Model shared by every graph read
// from the same document.
package lineage
