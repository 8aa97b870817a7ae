package snapshot

import (
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/leapstack-labs/tmlineage/internal/feature"
	"github.com/leapstack-labs/tmlineage/internal/lineage"
)

// The gob records mirror the lineage types with exported fields only.

type blob struct {
	Document string
	RunID    string
	Graph    graphRecord
}

type graphRecord struct {
	Model  modelRecord
	Nodes  []nodeRecord
	Edges  []edgeRecord
	Tracks []trackRecord
	Merged bool
}

type modelRecord struct {
	SpatialUnits string
	TimeUnits    string
	Attrs        []attrRecord
	// Declarations is indexed like feature.Categories.
	Declarations [][]feature.Declaration
}

type nodeRecord struct {
	ID       int64
	Frame    int64
	Attrs    []attrRecord
	Track    int64
	HasTrack bool
}

type edgeRecord struct {
	Source int64
	Target int64
	Attrs  []attrRecord
}

type trackRecord struct {
	ID       int64
	Attrs    []attrRecord
	Retained bool
}

type attrRecord struct {
	Name  string
	Kind  uint8
	Int   int64
	Real  float64
	Text  string
	Point [][]float64
}

func encode(w io.Writer, b *blob) error {
	zw := gzip.NewWriter(w)
	if err := gob.NewEncoder(zw).Encode(b); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return zw.Close()
}

func decode(r io.Reader) (*blob, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	defer func() { _ = zr.Close() }()

	var b blob
	if err := gob.NewDecoder(zr).Decode(&b); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &b, nil
}

func newBlob(e Entry) *blob {
	g := e.Graph
	rec := graphRecord{Model: fromModel(g.Model), Merged: g.Merged}
	for _, n := range g.Nodes() {
		track, ok := n.Track()
		rec.Nodes = append(rec.Nodes, nodeRecord{
			ID:       int64(n.ID),
			Frame:    n.Frame,
			Attrs:    fromAttrs(n.Attrs),
			Track:    track,
			HasTrack: ok,
		})
	}
	for _, edge := range g.Edges() {
		rec.Edges = append(rec.Edges, edgeRecord{
			Source: int64(edge.Source),
			Target: int64(edge.Target),
			Attrs:  fromAttrs(edge.Attrs),
		})
	}
	for _, t := range g.Tracks() {
		rec.Tracks = append(rec.Tracks, trackRecord{ID: t.ID, Attrs: fromAttrs(t.Attrs), Retained: t.Retained})
	}
	return &blob{Document: e.Document, RunID: e.RunID, Graph: rec}
}

// graph rebuilds the lineage graph with a model of its own.
func (b *blob) graph() (*lineage.Graph, error) {
	model, err := b.Graph.Model.model()
	if err != nil {
		return nil, err
	}
	g := lineage.NewGraph(model)
	g.Merged = b.Graph.Merged
	for _, n := range b.Graph.Nodes {
		attrs, err := toAttrs(n.Attrs)
		if err != nil {
			return nil, err
		}
		node := g.AddNode(lineage.NodeID(n.ID), n.Frame, attrs)
		if n.HasTrack {
			node.SetTrack(n.Track)
		}
	}
	for _, e := range b.Graph.Edges {
		attrs, err := toAttrs(e.Attrs)
		if err != nil {
			return nil, err
		}
		if err := g.AddEdge(lineage.NodeID(e.Source), lineage.NodeID(e.Target), attrs); err != nil {
			return nil, fmt.Errorf("decoding snapshot: %w", err)
		}
	}
	for _, t := range b.Graph.Tracks {
		attrs, err := toAttrs(t.Attrs)
		if err != nil {
			return nil, err
		}
		g.AddTrack(&lineage.Track{ID: t.ID, Attrs: attrs, Retained: t.Retained})
	}
	return g, nil
}

func fromModel(m *lineage.Model) modelRecord {
	rec := modelRecord{
		SpatialUnits: m.SpatialUnits,
		TimeUnits:    m.TimeUnits,
		Attrs:        fromAttrs(m.Attrs),
	}
	for _, c := range feature.Categories {
		rec.Declarations = append(rec.Declarations, m.Registry.Declarations(c))
	}
	return rec
}

func (rec modelRecord) model() (*lineage.Model, error) {
	m := lineage.NewModel()
	m.SpatialUnits = rec.SpatialUnits
	m.TimeUnits = rec.TimeUnits
	attrs, err := toAttrs(rec.Attrs)
	if err != nil {
		return nil, err
	}
	m.Attrs = attrs
	if len(rec.Declarations) > len(feature.Categories) {
		return nil, fmt.Errorf("decoding snapshot: %d declaration categories", len(rec.Declarations))
	}
	for i, decls := range rec.Declarations {
		for _, d := range decls {
			m.Registry.Declare(feature.Categories[i], d)
		}
	}
	return m, nil
}

func fromAttrs(a *feature.Attributes) []attrRecord {
	var out []attrRecord
	a.Range(func(name string, v feature.Value) bool {
		rec := attrRecord{Name: name, Kind: uint8(v.Kind())}
		switch v.Kind() {
		case feature.KindInt:
			rec.Int, _ = v.AsInt()
		case feature.KindReal:
			rec.Real, _ = v.AsReal()
		case feature.KindText:
			rec.Text, _ = v.AsText()
		case feature.KindPoints:
			pts, _ := v.AsPoints()
			for _, p := range pts {
				rec.Point = append(rec.Point, p)
			}
		}
		out = append(out, rec)
		return true
	})
	return out
}

func toAttrs(recs []attrRecord) (*feature.Attributes, error) {
	a := feature.NewAttributes()
	for _, rec := range recs {
		var v feature.Value
		switch feature.Kind(rec.Kind) {
		case feature.KindNone:
			v = feature.None()
		case feature.KindInt:
			v = feature.Int(rec.Int)
		case feature.KindReal:
			v = feature.Real(rec.Real)
		case feature.KindText:
			v = feature.Text(rec.Text)
		case feature.KindPoints:
			pts := make([]feature.Point, 0, len(rec.Point))
			for _, p := range rec.Point {
				pts = append(pts, p)
			}
			v = feature.Points(pts)
		default:
			return nil, fmt.Errorf("decoding snapshot: attribute %s has %s", rec.Name, feature.Kind(rec.Kind))
		}
		a.Set(rec.Name, v)
	}
	return a, nil
}
