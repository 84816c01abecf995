package persist

import (
	"encoding/json"
	"time"

	"pkt.systems/tabstrip/schema"
)

// Document is the per-identity persisted record.
type Document struct {
	Tabs          []schema.Tab `json:"tabs"`
	LastUpdated   time.Time    `json:"lastUpdated"`
	IsInitialized bool         `json:"isInitialized,omitempty"`
	// Writer identifies the process that wrote the document.
	Writer string `json:"writer,omitempty"`
}

// EncodeDocument marshals doc, writing an empty tab list as [].
func EncodeDocument(doc Document) ([]byte, error) {
	if doc.Tabs == nil {
		doc.Tabs = []schema.Tab{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeDocument unmarshals and validates a document.
func DecodeDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, err
	}
	if err := schema.ValidateTabs(doc.Tabs); err != nil {
		return Document{}, err
	}
	return doc, nil
}
