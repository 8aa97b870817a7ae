package trackmate

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/leapstack-labs/tmlineage/internal/feature"
	"github.com/leapstack-labs/tmlineage/internal/lineage"
)

// WriteOptions controls document output.
type WriteOptions struct {
	// Version is the TrackMate version written on the root element.
	Version string
	Logger  *slog.Logger
}

// WriteFile writes graphs to a new document at path.
func WriteFile(path string, graphs []*lineage.Graph, settings Settings, opts WriteOptions) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is user input by design
	if err != nil {
		return err
	}
	if err := Write(f, graphs, settings, opts); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// Write serializes graphs into one document. All graphs must share units
// and feature declarations. Settings are written verbatim after the model.
func Write(w io.Writer, graphs []*lineage.Graph, settings Settings, opts WriteOptions) error {
	if len(graphs) == 0 {
		return ErrNoGraphs
	}
	model := graphs[0].Model
	for i, g := range graphs[1:] {
		if !model.Compatible(g.Model) {
			return fmt.Errorf("%w: graph %d (%s)", ErrIncompatibleGraphs, i+1, g.Name())
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}

	bw := bufio.NewWriter(w)
	if _, err := io.WriteString(bw, xml.Header); err != nil {
		return err
	}
	x := &xmlWriter{enc: xml.NewEncoder(bw)}
	x.enc.Indent("", "  ")

	x.start(elemRoot, attr(attrVersion, version))
	x.start(elemModel, attr(attrSpatialUnits, model.SpatialUnits), attr(attrTimeUnits, model.TimeUnits))
	x.declarations(model.Registry)
	x.spots(graphs)
	x.tracks(graphs)
	x.filteredTracks(graphs)
	x.end(elemModel)

	if !settings.IsZero() {
		x.flush()
		if x.err == nil {
			_, x.err = bw.WriteString("\n  ")
		}
		if x.err == nil {
			_, x.err = bw.Write(settings.Raw)
		}
	}
	x.end(elemRoot)
	x.flush()
	if x.err != nil {
		return fmt.Errorf("writing document: %w", x.err)
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}

	logger.Debug("document written", "graphs", len(graphs))
	return nil
}

// xmlWriter keeps the first encoding error and ignores later calls.
type xmlWriter struct {
	enc *xml.Encoder
	err error
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

func (x *xmlWriter) start(name string, attrs ...xml.Attr) {
	if x.err != nil {
		return
	}
	x.err = x.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (x *xmlWriter) end(name string) {
	if x.err != nil {
		return
	}
	x.err = x.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

func (x *xmlWriter) text(s string) {
	if x.err != nil || s == "" {
		return
	}
	x.err = x.enc.EncodeToken(xml.CharData(s))
}

func (x *xmlWriter) flush() {
	if x.err != nil {
		return
	}
	x.err = x.enc.Flush()
}

func (x *xmlWriter) element(name string, attrs ...xml.Attr) {
	x.start(name, attrs...)
	x.end(name)
}

func (x *xmlWriter) declarations(r *feature.Registry) {
	x.start(elemFeatureDeclarations)
	for _, c := range feature.Categories {
		x.start(c.Element())
		for _, d := range r.Declarations(c) {
			attrs := []xml.Attr{attr(attrFeature, d.Feature)}
			for _, kv := range [][2]string{
				{attrName, d.Name},
				{attrShortName, d.ShortName},
				{attrDimension, d.Dimension},
				{attrIsInt, d.IsInt},
			} {
				if kv[1] != "" {
					attrs = append(attrs, attr(kv[0], kv[1]))
				}
			}
			x.element(elemFeature, attrs...)
		}
		x.end(c.Element())
	}
	x.end(elemFeatureDeclarations)
}

func (x *xmlWriter) spots(graphs []*lineage.Graph) {
	total := 0
	byFrame := make([]map[int64][]*lineage.Node, len(graphs))
	var frames []int64
	seen := make(map[int64]bool)
	for i, g := range graphs {
		byFrame[i] = make(map[int64][]*lineage.Node)
		for _, n := range g.Nodes() {
			byFrame[i][n.Frame] = append(byFrame[i][n.Frame], n)
			if !seen[n.Frame] {
				seen[n.Frame] = true
				frames = append(frames, n.Frame)
			}
			total++
		}
	}
	slices.Sort(frames)

	x.start(elemAllSpots, attr(attrNSpots, strconv.Itoa(total)))
	for _, f := range frames {
		x.start(elemSpotsInFrame, attr(attrFrame, strconv.FormatInt(f, 10)))
		for i := range graphs {
			for _, n := range byFrame[i][f] {
				x.spot(n)
			}
		}
		x.end(elemSpotsInFrame)
	}
	x.end(elemAllSpots)
}

func (x *xmlWriter) spot(n *lineage.Node) {
	var attrs []xml.Attr
	if !n.Attrs.Has(feature.IDAttr) {
		attrs = append(attrs, attr(feature.IDAttr, strconv.FormatInt(int64(n.ID), 10)))
	}
	body := ""
	n.Attrs.Range(func(name string, v feature.Value) bool {
		switch name {
		case AttrTrackID:
		case feature.ROIAttr:
			pts, _ := v.AsPoints()
			attrs = append(attrs, attr(name, strconv.Itoa(len(pts))))
			body = feature.FormatPoints(pts)
		default:
			attrs = append(attrs, attr(name, v.String()))
		}
		return true
	})
	x.start(elemSpot, attrs...)
	x.text(body)
	x.end(elemSpot)
}

func (x *xmlWriter) tracks(graphs []*lineage.Graph) {
	x.start(elemAllTracks)
	for _, g := range graphs {
		tracks := g.Tracks()
		for _, t := range tracks {
			x.start(elemTrack, trackAttrs(t)...)
			for _, e := range g.Edges() {
				if len(tracks) > 1 && !inTrack(g, e.Source, t.ID) {
					continue
				}
				x.element(elemEdge, edgeAttrs(e)...)
			}
			x.end(elemTrack)
		}
	}
	x.end(elemAllTracks)
}

func (x *xmlWriter) filteredTracks(graphs []*lineage.Graph) {
	x.start(elemFilteredTracks)
	for _, g := range graphs {
		for _, t := range g.Tracks() {
			if t.Retained {
				x.element(elemTrackID, attr(AttrTrackID, strconv.FormatInt(t.ID, 10)))
			}
		}
	}
	x.end(elemFilteredTracks)
}

func trackAttrs(t *lineage.Track) []xml.Attr {
	var attrs []xml.Attr
	if !t.Attrs.Has(AttrTrackID) {
		attrs = append(attrs, attr(AttrTrackID, strconv.FormatInt(t.ID, 10)))
	}
	t.Attrs.Range(func(name string, v feature.Value) bool {
		attrs = append(attrs, attr(name, v.String()))
		return true
	})
	return attrs
}

func edgeAttrs(e *lineage.Edge) []xml.Attr {
	var attrs []xml.Attr
	if !e.Attrs.Has(AttrSource) {
		attrs = append(attrs, attr(AttrSource, strconv.FormatInt(int64(e.Source), 10)))
	}
	if !e.Attrs.Has(AttrTarget) {
		attrs = append(attrs, attr(AttrTarget, strconv.FormatInt(int64(e.Target), 10)))
	}
	e.Attrs.Range(func(name string, v feature.Value) bool {
		attrs = append(attrs, attr(name, v.String()))
		return true
	})
	return attrs
}

func inTrack(g *lineage.Graph, id lineage.NodeID, track int64) bool {
	n, ok := g.Node(id)
	if !ok {
		return false
	}
	t, ok := n.Track()
	return ok && t == track
}
