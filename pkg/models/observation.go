package models

// ObservationType is the kind of observation recorded by the memory system.
type ObservationType string

// ObsTypeDiscovery is the type of observations recorded without one.
const ObsTypeDiscovery ObservationType = "discovery"

// Defaults applied when an observation row leaves the column empty.
const (
	DefaultObservationType  = ObsTypeDiscovery
	DefaultObservationTitle = "Untitled"
)

// Observation columns read by the formatter.
const (
	ObsColumnNarrative     = "narrative"
	ObsColumnText          = "text"
	ObsColumnFacts         = "facts"
	ObsColumnType          = "type"
	ObsColumnTitle         = "title"
	ObsColumnSubtitle      = "subtitle"
	ObsColumnConcepts      = "concepts"
	ObsColumnFilesRead     = "files_read"
	ObsColumnFilesModified = "files_modified"
)
