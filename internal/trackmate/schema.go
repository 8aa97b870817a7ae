// Package trackmate reads and writes TrackMate XML documents.
//
// The reader streams the document with a pull cursor and builds one lineage
// graph per track (or one merged graph), discarding consumed subtrees so
// memory stays bounded by the largest open element. The writer is its
// structural inverse.
package trackmate

// Element names.
const (
	elemRoot                = "TrackMate"
	elemModel               = "Model"
	elemFeatureDeclarations = "FeatureDeclarations"
	elemFeature             = "Feature"
	elemAllSpots            = "AllSpots"
	elemSpotsInFrame        = "SpotsInFrame"
	elemSpot                = "Spot"
	elemAllTracks           = "AllTracks"
	elemTrack               = "Track"
	elemEdge                = "Edge"
	elemFilteredTracks      = "FilteredTracks"
	elemTrackID             = "TrackID"
	elemSettings            = "Settings"
)

// Attribute names.
const (
	attrVersion      = "version"
	attrSpatialUnits = "spatialunits"
	attrTimeUnits    = "timeunits"
	attrNSpots       = "nspots"
	attrFrame        = "frame"

	attrFeature   = "feature"
	attrName      = "name"
	attrShortName = "shortname"
	attrDimension = "dimension"
	attrIsInt     = "isint"

	// AttrFrame is the spot time index.
	AttrFrame = "FRAME"
	// AttrTrackID identifies a track.
	AttrTrackID = "TRACK_ID"
	// AttrSource and AttrTarget are the edge endpoints.
	AttrSource = "SPOT_SOURCE_ID"
	AttrTarget = "SPOT_TARGET_ID"
)

// DefaultVersion is written when no document version is known.
const DefaultVersion = "unknown"
