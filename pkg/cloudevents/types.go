package cloudevents

import (
	"time"
)

// Event types published by the roll inventory engine
const (
	RollReceived      = "textile.roll.received"
	RollClassified    = "textile.roll.classified"
	RollAllocated     = "textile.roll.allocated"
	RollDeallocated   = "textile.roll.deallocated"
	RollDispatched    = "textile.roll.dispatched"
	RollReturned      = "textile.roll.returned"
	RollSpawned       = "textile.roll.spawned"
	RollScrapped      = "textile.roll.scrapped"
	LandedCostApplied = "textile.roll.landed-cost-applied"
	BatchCreated      = "textile.batch.created"
	BatchNotesUpdated = "textile.batch.notes-updated"
	CatalogSKUCreated = "textile.catalog.sku-created"
)

// Source constants for event sources
const (
	SourceRollInventory = "/textile/roll-inventory"
)

// Extension attribute names
const (
	ExtCorrelationID = "textilecorrelationid"
	ExtActor         = "textileactor"
)

// CloudEvent is a CloudEvents v1.0 envelope
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	Subject         string      `json:"subject,omitempty"`
	ID              string      `json:"id"`
	Time            time.Time   `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`

	CorrelationID string `json:"textilecorrelationid,omitempty"`
	Actor         string `json:"textileactor,omitempty"`
}
