package trackmate

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/leapstack-labs/tmlineage/internal/feature"
	"github.com/leapstack-labs/tmlineage/internal/lineage"
	"github.com/leapstack-labs/tmlineage/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixture has two tracks and a lone spot. Track 0 divides at spot 3 and is
// the only retained track. One spot has no ID and the last Track has no
// TRACK_ID, both are skipped with a warning.
const fixture = `<?xml version="1.0" encoding="UTF-8"?>
<TrackMate version="7.11.1">
  <Log>some log text</Log>
  <Model spatialunits="micron" timeunits="min">
    <FeatureDeclarations>
      <SpotFeatures>
        <Feature feature="QUALITY" name="Quality" shortname="Quality" dimension="QUALITY" isint="false" />
        <Feature feature="POSITION_X" name="X" shortname="X" dimension="POSITION" isint="false" />
        <Feature feature="FRAME" name="Frame" shortname="Frame" dimension="NONE" isint="true" />
        <Feature feature="AREA" name="Area" shortname="Area" dimension="AREA" isint="false" />
      </SpotFeatures>
      <EdgeFeatures>
        <Feature feature="SPOT_SOURCE_ID" name="Source spot ID" shortname="Source ID" dimension="NONE" isint="true" />
        <Feature feature="SPOT_TARGET_ID" name="Target spot ID" shortname="Target ID" dimension="NONE" isint="true" />
        <Feature feature="LINK_COST" name="Edge cost" shortname="Cost" dimension="COST" isint="false" />
      </EdgeFeatures>
      <TrackFeatures>
        <Feature feature="TRACK_ID" name="Track ID" shortname="ID" dimension="NONE" isint="true" />
        <Feature feature="NUMBER_SPOTS" name="Number of spots in track" shortname="N spots" dimension="NONE" isint="true" />
      </TrackFeatures>
    </FeatureDeclarations>
    <AllSpots nspots="9">
      <SpotsInFrame frame="0">
        <Spot ID="1" name="ID1" QUALITY="1.5" POSITION_X="10.25" FRAME="0" AREA="100" ROI_N_POINTS="3">-1 0 1 0 0 1</Spot>
        <Spot ID="10" name="ID10" QUALITY="NaN" POSITION_X="40" FRAME="0" AREA="90" />
      </SpotsInFrame>
      <SpotsInFrame frame="1">
        <Spot ID="2" name="ID2" QUALITY="Infinity" POSITION_X="11" FRAME="1" AREA="110" ROI_N_POINTS="2"></Spot>
        <Spot ID="11" name="ID11" QUALITY="2" POSITION_X="41" FRAME="1" AREA="95" />
        <Spot ID="20" name="ID20" QUALITY="2" POSITION_X="80" FRAME="1" AREA="60" />
        <Spot name="noid" QUALITY="2" POSITION_X="80" FRAME="1" />
      </SpotsInFrame>
      <SpotsInFrame frame="2">
        <Spot ID="3" name="ID3" QUALITY="3" POSITION_X="12" AREA="120" />
      </SpotsInFrame>
      <SpotsInFrame frame="3">
        <Spot ID="4" name="ID4" QUALITY="4" POSITION_X="13" FRAME="3" AREA="70" />
        <Spot ID="5" name="ID5" QUALITY="4" POSITION_X="9" FRAME="3" AREA="65" />
      </SpotsInFrame>
    </AllSpots>
    <AllTracks>
      <Track name="Track_0" TRACK_ID="0" NUMBER_SPOTS="5">
        <Edge SPOT_SOURCE_ID="1" SPOT_TARGET_ID="2" LINK_COST="0.5" />
        <Edge SPOT_SOURCE_ID="2" SPOT_TARGET_ID="3" LINK_COST="-1" />
        <Edge SPOT_SOURCE_ID="3" SPOT_TARGET_ID="4" LINK_COST="1" />
        <Edge SPOT_SOURCE_ID="3" SPOT_TARGET_ID="5" LINK_COST="1" />
      </Track>
      <Track name="Track_1" TRACK_ID="1" NUMBER_SPOTS="2">
        <Edge SPOT_SOURCE_ID="10" SPOT_TARGET_ID="11" LINK_COST="0" />
      </Track>
      <Track name="Broken">
        <Edge SPOT_SOURCE_ID="4" SPOT_TARGET_ID="20" />
      </Track>
    </AllTracks>
    <FilteredTracks>
      <TrackID TRACK_ID="0" />
    </FilteredTracks>
  </Model>
  <Settings>
    <ImageData filename="cells.tif" folder="/data" width="512" />
    <BasicSettings xstart="0" xend="511" />
  </Settings>
  <GUIState state="ConfigureViews" />
</TrackMate>
`

func read(t *testing.T, doc string, opts ReadOptions) *Document {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testutil.NewTestLogger(t)
	}
	d, err := Read(strings.NewReader(doc), opts)
	require.NoError(t, err)
	return d
}

func attrOf(t *testing.T, g *lineage.Graph, id lineage.NodeID, name string) feature.Value {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok, "node %d missing", id)
	v, ok := n.Attrs.Get(name)
	require.True(t, ok, "node %d has no %s", id, name)
	return v
}

func TestRead_DefaultFiltering(t *testing.T) {
	doc := read(t, fixture, ReadOptions{})

	require.Len(t, doc.Forest.Graphs, 1)
	assert.False(t, doc.Forest.Merged)
	g := doc.Forest.Graphs[0]
	assert.Equal(t, []lineage.NodeID{1, 2, 3, 4, 5}, g.NodeIDs())
	assert.Equal(t, 4, g.EdgeCount())

	track, ok := g.Track()
	require.True(t, ok)
	assert.Equal(t, int64(0), track.ID)
	assert.True(t, track.Retained)
	assert.Equal(t, "Track_0", track.Name())
	assert.True(t, feature.Int(5).Equal(mustGet(t, track.Attrs, "NUMBER_SPOTS")))

	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		tid, ok := n.Track()
		assert.True(t, ok)
		assert.Equal(t, int64(0), tid)
	}

	assert.Equal(t, "7.11.1", doc.Version)
	assert.Equal(t, "micron", doc.Model.SpatialUnits)
	assert.Equal(t, "min", doc.Model.TimeUnits)
	assert.Same(t, doc.Model, g.Model)

	require.Len(t, doc.Warnings, 3)
	assert.Equal(t, elemSpot, doc.Warnings[0].Element)
	assert.Equal(t, elemTrack, doc.Warnings[1].Element)
	assert.Equal(t, elemEdge, doc.Warnings[2].Element)
	assert.Positive(t, doc.Warnings[0].Line)
}

func TestRead_KeepEverything(t *testing.T) {
	doc := read(t, fixture, ReadOptions{KeepAllSpots: true, KeepAllTracks: true})

	require.Len(t, doc.Forest.Graphs, 3)
	g0, g1, lone := doc.Forest.Graphs[0], doc.Forest.Graphs[1], doc.Forest.Graphs[2]

	assert.Equal(t, []lineage.NodeID{1, 2, 3, 4, 5}, g0.NodeIDs())
	assert.Equal(t, []lineage.NodeID{10, 11}, g1.NodeIDs())
	assert.Equal(t, []lineage.NodeID{20}, lone.NodeIDs())

	t1, ok := g1.Track()
	require.True(t, ok)
	assert.Equal(t, int64(1), t1.ID)
	assert.False(t, t1.Retained)

	assert.Empty(t, lone.Tracks())
	assert.Equal(t, "20", lone.Name())
}

func TestRead_KeepAllSpotsOnlyRemovesZeroDegree(t *testing.T) {
	all := read(t, fixture, ReadOptions{KeepAllSpots: true, KeepAllTracks: true, OneGraph: true})
	some := read(t, fixture, ReadOptions{KeepAllTracks: true, OneGraph: true})

	var removed []lineage.NodeID
	g := all.Forest.Graphs[0]
	for _, id := range g.NodeIDs() {
		if !some.Forest.Graphs[0].HasNode(id) {
			removed = append(removed, id)
			assert.Zero(t, g.Degree(id))
		}
	}
	assert.Equal(t, []lineage.NodeID{20}, removed)
}

func TestRead_OneGraph(t *testing.T) {
	doc := read(t, fixture, ReadOptions{KeepAllSpots: true, KeepAllTracks: true, OneGraph: true})

	require.Len(t, doc.Forest.Graphs, 1)
	assert.True(t, doc.Forest.Merged)
	g := doc.Forest.Graphs[0]
	assert.Equal(t, 8, g.NodeCount())
	assert.Equal(t, 5, g.EdgeCount())
	require.Len(t, g.Tracks(), 2)
	assert.Equal(t, int64(0), g.Tracks()[0].ID)
	assert.Equal(t, int64(1), g.Tracks()[1].ID)
	assert.Equal(t, "", g.Name())
}

func TestRead_Coercion(t *testing.T) {
	doc := read(t, fixture, ReadOptions{})
	g := doc.Forest.Graphs[0]

	assert.True(t, feature.Int(1).Equal(attrOf(t, g, 1, "ID")))
	assert.True(t, feature.Int(0).Equal(attrOf(t, g, 1, "FRAME")))
	assert.True(t, feature.Real(10.25).Equal(attrOf(t, g, 1, "POSITION_X")))
	assert.True(t, feature.Text("ID1").Equal(attrOf(t, g, 1, "name")))
	assert.True(t, feature.Points([]feature.Point{{-1, 0}, {1, 0}, {0, 1}}).Equal(attrOf(t, g, 1, feature.ROIAttr)))
	assert.True(t, attrOf(t, g, 2, feature.ROIAttr).IsNone())

	n3, _ := g.Node(3)
	assert.Equal(t, int64(2), n3.Frame, "frame taken from SpotsInFrame")
	assert.False(t, n3.Attrs.Has(feature.ROIAttr))

	e, ok := g.Edge(2, 3)
	require.True(t, ok)
	v, _ := e.Attrs.Get("LINK_COST")
	assert.True(t, feature.Real(-1).Equal(v))
	v, _ = e.Attrs.Get(AttrSource)
	assert.True(t, feature.Int(2).Equal(v))
}

func TestRead_FatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		old     string
		new     string
		wantErr error
	}{
		{
			name:    "bad roi coordinate",
			old:     `ROI_N_POINTS="3">-1 0 1 0 0 1`,
			new:     `ROI_N_POINTS="3">-1 0 1 zero 0 1`,
			wantErr: feature.ErrValueFormat,
		},
		{
			name:    "invalid isint flag",
			old:     `dimension="QUALITY" isint="false"`,
			new:     `dimension="QUALITY" isint="maybe"`,
			wantErr: feature.ErrIntFlag,
		},
		{
			name:    "two tracks in one component",
			old:     `<Edge SPOT_SOURCE_ID="10" SPOT_TARGET_ID="11" LINK_COST="0" />`,
			new:     `<Edge SPOT_SOURCE_ID="10" SPOT_TARGET_ID="11" LINK_COST="0" /><Edge SPOT_SOURCE_ID="11" SPOT_TARGET_ID="4" />`,
			wantErr: lineage.ErrStructure,
		},
		{
			name:    "two records for one track",
			old:     `<Track name="Track_1" TRACK_ID="1"`,
			new:     `<Track name="Track_1" TRACK_ID="0"`,
			wantErr: lineage.ErrStructure,
		},
		{
			name:    "no model",
			old:     `<Model spatialunits="micron" timeunits="min">`,
			new:     `<Other>`,
			wantErr: ErrNoModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(fixture, tt.old, tt.new, 1)
			if tt.name == "no model" {
				doc = strings.Replace(doc, `</Model>`, `</Other>`, 1)
			}
			require.NotEqual(t, fixture, doc)
			_, err := Read(strings.NewReader(doc), ReadOptions{KeepAllTracks: true, Logger: testutil.NewTestLogger(t)})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRead_WarningsAreLogged(t *testing.T) {
	logger, records := testutil.NewCaptureLogger()
	_, err := Read(strings.NewReader(fixture), ReadOptions{Logger: logger})
	require.NoError(t, err)

	warnings := records.Messages(slog.LevelWarn)
	assert.Len(t, warnings, 3)
	assert.Contains(t, warnings, "skipping element")
}

func TestRead_NoFilteredTracksKeepsEveryTrack(t *testing.T) {
	doc := strings.Replace(fixture, `<FilteredTracks>
      <TrackID TRACK_ID="0" />
    </FilteredTracks>`, "", 1)
	d := read(t, doc, ReadOptions{})

	require.Len(t, d.Forest.Graphs, 2)
	for _, g := range d.Forest.Graphs {
		track, ok := g.Track()
		require.True(t, ok)
		assert.True(t, track.Retained)
	}
}

func TestRead_NoFilteredTracksKeepsUntrackedSpots(t *testing.T) {
	doc := strings.Replace(fixture, `<FilteredTracks>
      <TrackID TRACK_ID="0" />
    </FilteredTracks>`, "", 1)
	d := read(t, doc, ReadOptions{KeepAllSpots: true})

	require.Len(t, d.Forest.Graphs, 3)
	lone := d.Forest.Graphs[2]
	assert.True(t, lone.HasNode(20))
	assert.Equal(t, 1, lone.NodeCount())
	_, ok := lone.Track()
	assert.False(t, ok)
}

func TestRead_OneGraphSingleTrack(t *testing.T) {
	d := read(t, fixture, ReadOptions{OneGraph: true})

	require.Len(t, d.Forest.Graphs, 1)
	g := d.Forest.Graphs[0]
	require.Len(t, g.Tracks(), 1)
	assert.True(t, g.Merged)
	_, ok := g.Track()
	assert.False(t, ok, "a merged graph is not a per-track graph")
	assert.Equal(t, "", g.Name())
}

func TestRead_Settings(t *testing.T) {
	doc := read(t, fixture, ReadOptions{})
	require.False(t, doc.Settings.IsZero())
	raw := string(doc.Settings.Raw)
	assert.True(t, strings.HasPrefix(raw, "<Settings>"), raw)
	assert.True(t, strings.HasSuffix(raw, "</Settings>"), raw)
	assert.Contains(t, raw, `filename="cells.tif"`)
	assert.NotContains(t, raw, "GUIState")

	s, err := ReadSettings(strings.NewReader(fixture))
	require.NoError(t, err)
	assert.Equal(t, doc.Settings.Raw, s.Raw)
}

func TestReadSettings_Missing(t *testing.T) {
	s, err := ReadSettings(strings.NewReader(`<TrackMate><Model/></TrackMate>`))
	require.NoError(t, err)
	assert.True(t, s.IsZero())
}

func TestRead_Truncated(t *testing.T) {
	_, err := Read(strings.NewReader(fixture[:len(fixture)/2]), ReadOptions{})
	assert.Error(t, err)
}

func mustGet(t *testing.T, a *feature.Attributes, name string) feature.Value {
	t.Helper()
	v, ok := a.Get(name)
	require.True(t, ok, "missing %s", name)
	return v
}

func TestRead_Latin1(t *testing.T) {
	// "é" is the single byte 0xE9 in ISO-8859-1.
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?>\n" +
		"<TrackMate version=\"7.11.1\"><Model spatialunits=\"\xb5m\" timeunits=\"min\">" +
		"<AllSpots nspots=\"1\"><SpotsInFrame frame=\"0\">" +
		"<Spot ID=\"1\" FRAME=\"0\" name=\"cellule \xe9\" /></SpotsInFrame></AllSpots>" +
		"</Model></TrackMate>"

	d := read(t, doc, ReadOptions{KeepAllSpots: true, KeepAllTracks: true})
	assert.Equal(t, "µm", d.Model.SpatialUnits)
	require.Len(t, d.Forest.Graphs, 1)
	n, ok := d.Forest.Graphs[0].Node(1)
	require.True(t, ok)
	name, _ := n.Attrs.Get("name")
	assert.Equal(t, "cellule é", name.String())
}
