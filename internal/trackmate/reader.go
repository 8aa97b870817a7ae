package trackmate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/tmlineage/internal/feature"
	"github.com/leapstack-labs/tmlineage/internal/lineage"
)

// ReadOptions controls filtering and partitioning of a read.
type ReadOptions struct {
	// KeepAllSpots keeps spots that belong to no track.
	KeepAllSpots bool
	// KeepAllTracks keeps tracks that upstream filtering discarded.
	KeepAllTracks bool
	// OneGraph keeps every track in a single graph instead of one per track.
	OneGraph bool
	Logger   *slog.Logger
}

// Document is the result of reading one TrackMate document.
type Document struct {
	Forest   *lineage.Forest
	Model    *lineage.Model
	Settings Settings
	Version  string
	Warnings []Warning
}

// ReadFile reads the document at path.
func ReadFile(path string, opts ReadOptions) (*Document, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is user input by design
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	doc, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Read builds a lineage forest from a TrackMate document.
//
// Elements missing a required attribute are skipped and reported as
// warnings. Bad ROI coordinates, invalid isint flags and impossible graph
// states abort the read.
func Read(r io.Reader, opts ReadOptions) (*Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	model := lineage.NewModel()
	rd := &reader{
		cur:      newCursor(r),
		opts:     opts,
		logger:   logger,
		model:    model,
		graph:    lineage.NewGraph(model),
		retained: make(map[int64]bool),
		doc:      &Document{Model: model, Version: DefaultVersion},
	}
	if err := rd.read(); err != nil {
		return nil, err
	}
	return rd.doc, nil
}

type reader struct {
	cur    *cursor
	opts   ReadOptions
	logger *slog.Logger
	doc    *Document

	model    *lineage.Model
	graph    *lineage.Graph
	tracks   []*lineage.Track
	retained map[int64]bool
	filtered bool
}

func (rd *reader) read() error {
	sawModel := false
	for {
		ev, err := rd.cur.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading document: %w", err)
		}
		if ev.kind != startEvent {
			continue
		}

		switch {
		case ev.depth == 1:
			if v, ok := ev.attr(attrVersion); ok {
				rd.doc.Version = v
			}
		case ev.name == elemModel && !sawModel:
			sawModel = true
			if err := rd.readModel(ev); err != nil {
				return err
			}
		case ev.name == elemSettings && rd.doc.Settings.IsZero():
			raw, err := rd.cur.raw(ev)
			if err != nil {
				return fmt.Errorf("reading settings: %w", err)
			}
			rd.doc.Settings = Settings{Raw: raw}
		default:
			if err := rd.cur.skip(); err != nil {
				return fmt.Errorf("reading document: %w", err)
			}
		}
	}
	if !sawModel {
		return ErrNoModel
	}
	return nil
}

func (rd *reader) readModel(ev event) error {
	for _, a := range ev.attrs {
		rd.model.Attrs.Set(a.Name.Local, feature.Text(a.Value))
		switch a.Name.Local {
		case attrSpatialUnits:
			rd.model.SpatialUnits = a.Value
		case attrTimeUnits:
			rd.model.TimeUnits = a.Value
		}
	}

	err := rd.cur.each(func(ev event) error {
		switch ev.name {
		case elemFeatureDeclarations:
			return rd.readDeclarations()
		case elemAllSpots:
			return rd.readSpots()
		case elemAllTracks:
			return rd.readTracks()
		case elemFilteredTracks:
			return rd.readFilteredTracks()
		default:
			return rd.cur.skip()
		}
	})
	if err != nil {
		return err
	}
	return rd.finish()
}

func (rd *reader) readDeclarations() error {
	return rd.cur.each(func(block event) error {
		category, ok := feature.CategoryForElement(block.name)
		if !ok {
			return rd.cur.skip()
		}
		return rd.cur.each(func(ev event) error {
			if ev.name != elemFeature {
				return rd.cur.skip()
			}
			id, ok := ev.attr(attrFeature)
			if !ok {
				rd.warn(ev, "missing %s attribute", attrFeature)
				return rd.cur.skip()
			}
			d := feature.Declaration{Feature: id}
			d.Name, _ = ev.attr(attrName)
			d.ShortName, _ = ev.attr(attrShortName)
			d.Dimension, _ = ev.attr(attrDimension)
			d.IsInt, _ = ev.attr(attrIsInt)
			rd.model.Registry.Declare(category, d)
			return rd.cur.skip()
		})
	})
}

func (rd *reader) readSpots() error {
	return rd.cur.each(func(group event) error {
		if group.name != elemSpotsInFrame {
			return rd.cur.skip()
		}
		var groupFrame *int64
		if raw, ok := group.attr(attrFrame); ok {
			if f, err := feature.ParseInt(raw); err == nil {
				groupFrame = &f
			}
		}
		return rd.cur.each(func(ev event) error {
			if ev.name != elemSpot {
				return rd.cur.skip()
			}
			body, err := rd.cur.text()
			if err != nil {
				return err
			}
			return rd.addSpot(ev, groupFrame, body)
		})
	})
}

func (rd *reader) addSpot(ev event, groupFrame *int64, body string) error {
	rawID, ok := ev.attr(feature.IDAttr)
	if !ok {
		rd.warn(ev, "missing %s attribute", feature.IDAttr)
		return nil
	}
	id, err := feature.ParseInt(rawID)
	if err != nil {
		rd.warn(ev, "invalid %s %q", feature.IDAttr, rawID)
		return nil
	}

	var frame int64
	if raw, ok := ev.attr(AttrFrame); ok {
		if frame, err = feature.ParseInt(raw); err != nil {
			rd.warn(ev, "spot %d has invalid %s %q", id, AttrFrame, raw)
			return nil
		}
	} else if groupFrame != nil {
		frame = *groupFrame
	} else {
		rd.warn(ev, "spot %d has no frame", id)
		return nil
	}

	attrs, err := feature.CoerceAll(rd.model.Registry, feature.Node, rawAttrs(ev))
	if err != nil {
		return fmt.Errorf("spot %d at line %d: %w", id, ev.line, err)
	}
	if count, ok := ev.attr(feature.ROIAttr); ok {
		roi, err := feature.ParsePoints(count, body)
		if err != nil {
			return fmt.Errorf("spot %d at line %d: %w", id, ev.line, err)
		}
		attrs.Set(feature.ROIAttr, roi)
	}

	rd.graph.AddNode(lineage.NodeID(id), frame, attrs)
	return nil
}

func (rd *reader) readTracks() error {
	return rd.cur.each(func(ev event) error {
		if ev.name != elemTrack {
			return rd.cur.skip()
		}
		var current *lineage.Track
		if raw, ok := ev.attr(AttrTrackID); !ok {
			rd.warn(ev, "missing %s attribute", AttrTrackID)
		} else if id, err := feature.ParseInt(raw); err != nil {
			rd.warn(ev, "invalid %s %q", AttrTrackID, raw)
		} else {
			attrs, err := feature.CoerceAll(rd.model.Registry, feature.Track, rawAttrs(ev))
			if err != nil {
				return fmt.Errorf("track %d at line %d: %w", id, ev.line, err)
			}
			current = &lineage.Track{ID: id, Attrs: attrs}
			rd.tracks = append(rd.tracks, current)
		}

		return rd.cur.each(func(edge event) error {
			if edge.name == elemEdge {
				if err := rd.addEdge(edge, current); err != nil {
					return err
				}
			}
			return rd.cur.skip()
		})
	})
}

func (rd *reader) addEdge(ev event, track *lineage.Track) error {
	if track == nil {
		rd.warn(ev, "edge outside a track with an %s", AttrTrackID)
		return nil
	}
	source, ok := rd.endpoint(ev, AttrSource)
	if !ok {
		return nil
	}
	target, ok := rd.endpoint(ev, AttrTarget)
	if !ok {
		return nil
	}

	attrs, err := feature.CoerceAll(rd.model.Registry, feature.Edge, rawAttrs(ev))
	if err != nil {
		return fmt.Errorf("edge %d -> %d at line %d: %w", source, target, ev.line, err)
	}
	if err := rd.graph.AddEdge(source, target, attrs); err != nil {
		rd.warn(ev, "%v", err)
		return nil
	}
	for _, id := range []lineage.NodeID{source, target} {
		n, _ := rd.graph.Node(id)
		n.SetTrack(track.ID)
	}
	return nil
}

func (rd *reader) endpoint(ev event, name string) (lineage.NodeID, bool) {
	raw, ok := ev.attr(name)
	if !ok {
		rd.warn(ev, "missing %s attribute", name)
		return 0, false
	}
	id, err := feature.ParseInt(raw)
	if err != nil {
		rd.warn(ev, "invalid %s %q", name, raw)
		return 0, false
	}
	return lineage.NodeID(id), true
}

func (rd *reader) readFilteredTracks() error {
	rd.filtered = true
	return rd.cur.each(func(ev event) error {
		if ev.name == elemTrackID {
			if raw, ok := ev.attr(AttrTrackID); !ok {
				rd.warn(ev, "missing %s attribute", AttrTrackID)
			} else if id, err := feature.ParseInt(raw); err != nil {
				rd.warn(ev, "invalid %s %q", AttrTrackID, raw)
			} else {
				rd.retained[id] = true
			}
		}
		return rd.cur.skip()
	})
}

// finish filters the graph and splits it into the forest.
func (rd *reader) finish() error {
	g := rd.graph

	if !rd.filtered {
		// Without a FilteredTracks section nothing was filtered upstream.
		for _, t := range rd.tracks {
			rd.retained[t.ID] = true
		}
	}
	for _, t := range rd.tracks {
		t.Retained = rd.retained[t.ID]
	}

	if !rd.opts.KeepAllSpots {
		var lonely []lineage.NodeID
		for _, id := range g.NodeIDs() {
			if g.Degree(id) == 0 {
				lonely = append(lonely, id)
			}
		}
		g.RemoveNodes(lonely)
		rd.logger.Debug("removed spots outside tracks", "count", len(lonely))
	}
	if !rd.opts.KeepAllTracks && rd.filtered {
		var dropped []lineage.NodeID
		for _, n := range g.Nodes() {
			if t, ok := n.Track(); !ok || !rd.retained[t] {
				dropped = append(dropped, n.ID)
			}
		}
		g.RemoveNodes(dropped)
		rd.logger.Debug("removed spots of filtered tracks", "count", len(dropped))
	}

	records := make(map[int64][]*lineage.Track, len(rd.tracks))
	for _, t := range rd.tracks {
		records[t.ID] = append(records[t.ID], t)
	}

	forest := &lineage.Forest{Merged: rd.opts.OneGraph}
	if rd.opts.OneGraph {
		present := make(map[int64]lineage.NodeID)
		for _, n := range g.Nodes() {
			if t, ok := n.Track(); ok {
				if _, seen := present[t]; !seen {
					present[t] = n.ID
				}
			}
		}
		for _, t := range rd.tracks {
			first, ok := present[t.ID]
			if !ok {
				continue
			}
			if len(records[t.ID]) > 1 {
				return duplicateTrack(g.Name(), first, t.ID, len(records[t.ID]))
			}
			g.AddTrack(t)
		}
		g.Merged = true
		forest.Graphs = []*lineage.Graph{g}
	} else {
		for _, comp := range g.WeaklyConnectedComponents() {
			sub := g.Subgraph(comp)
			if err := rd.attachTrack(sub, comp, records); err != nil {
				return err
			}
			forest.Graphs = append(forest.Graphs, sub)
		}
	}

	rd.doc.Forest = forest
	rd.logger.Debug("document read",
		"graphs", len(forest.Graphs),
		"spots", forest.NodeCount(),
		"edges", forest.EdgeCount(),
		"warnings", len(rd.doc.Warnings))
	return nil
}

// attachTrack gives a component the metadata of its one track.
func (rd *reader) attachTrack(sub *lineage.Graph, comp []lineage.NodeID, records map[int64][]*lineage.Track) error {
	var (
		id    int64
		found bool
	)
	for _, nid := range comp {
		n, _ := sub.Node(nid)
		t, ok := n.Track()
		if !ok {
			continue
		}
		if found && t != id {
			return lineage.NewStructureError("", nid, "several track IDs in one component: %d and %d", id, t)
		}
		id, found = t, true
	}
	if !found {
		return nil
	}

	switch recs := records[id]; len(recs) {
	case 0:
		rd.logger.Warn("track has no attributes", "track", id)
		sub.AddTrack(&lineage.Track{ID: id, Attrs: feature.NewAttributes(), Retained: rd.retained[id]})
	case 1:
		sub.AddTrack(recs[0])
	default:
		return duplicateTrack("", comp[0], id, len(recs))
	}
	return nil
}

func duplicateTrack(graph string, node lineage.NodeID, id int64, n int) error {
	return lineage.NewStructureError(graph, node, "%d track records share %s %d", n, AttrTrackID, id)
}

func (rd *reader) warn(ev event, format string, args ...any) {
	w := Warning{Element: ev.name, Line: ev.line, Cause: fmt.Sprintf(format, args...)}
	rd.doc.Warnings = append(rd.doc.Warnings, w)
	rd.logger.Warn("skipping element", "element", w.Element, "line", w.Line, "cause", w.Cause)
}

func rawAttrs(ev event) []feature.RawAttr {
	out := make([]feature.RawAttr, 0, len(ev.attrs))
	for _, a := range ev.attrs {
		out = append(out, feature.RawAttr{Name: a.Name.Local, Value: a.Value})
	}
	return out
}
