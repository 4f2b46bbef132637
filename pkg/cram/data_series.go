package cram

// DataSeries names one record field with its own configurable encoding. The
// enumeration is closed; an id outside it in a compression header is kept
// verbatim but never consulted by the record codec.
type DataSeries string

const (
	SeriesBAMFlags        DataSeries = "BF"
	SeriesCRAMFlags       DataSeries = "CF"
	SeriesReferenceID     DataSeries = "RI"
	SeriesReadLength      DataSeries = "RL"
	SeriesAlignmentStart  DataSeries = "AP"
	SeriesReadGroup       DataSeries = "RG"
	SeriesReadName        DataSeries = "RN"
	SeriesMateFlags       DataSeries = "MF"
	SeriesMateRefID       DataSeries = "NS"
	SeriesMatePosition    DataSeries = "NP"
	SeriesTemplateSize    DataSeries = "TS"
	SeriesMateDistance    DataSeries = "NF"
	SeriesTagList         DataSeries = "TL"
	SeriesFeatureCount    DataSeries = "FN"
	SeriesFeatureCode     DataSeries = "FC"
	SeriesFeaturePosition DataSeries = "FP"
	SeriesDeletionLength  DataSeries = "DL"
	SeriesStretchBases    DataSeries = "BB"
	SeriesStretchScores   DataSeries = "QQ"
	SeriesBaseSubstCode   DataSeries = "BS"
	SeriesInsertion       DataSeries = "IN"
	SeriesRefSkipLength   DataSeries = "RS"
	SeriesPaddingLength   DataSeries = "PD"
	SeriesHardClipLength  DataSeries = "HC"
	SeriesSoftClipBases   DataSeries = "SC"
	SeriesMappingQuality  DataSeries = "MQ"
	SeriesBases           DataSeries = "BA"
	SeriesQualityScores   DataSeries = "QS"
)

// allDataSeries lists the closed enumeration in wire order; external block
// content ids for the default write profile are assigned from this order.
var allDataSeries = []DataSeries{
	SeriesBAMFlags, SeriesCRAMFlags, SeriesReferenceID, SeriesReadLength,
	SeriesAlignmentStart, SeriesReadGroup, SeriesReadName, SeriesMateFlags,
	SeriesMateRefID, SeriesMatePosition, SeriesTemplateSize, SeriesMateDistance,
	SeriesTagList, SeriesFeatureCount, SeriesFeatureCode, SeriesFeaturePosition,
	SeriesDeletionLength, SeriesStretchBases, SeriesStretchScores,
	SeriesBaseSubstCode, SeriesInsertion, SeriesRefSkipLength,
	SeriesPaddingLength, SeriesHardClipLength, SeriesSoftClipBases,
	SeriesMappingQuality, SeriesBases, SeriesQualityScores,
}
