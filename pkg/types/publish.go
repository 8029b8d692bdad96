// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// PublishItemResult is the sink's verdict on a single record.
type PublishItemResult struct {
	ID      string `json:"id" yaml:"id"`
	Status  int    `json:"status" yaml:"status"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// PublishResult is the response of one publish call, and also the
// aggregate across batches. Success is true only if every batch succeeded.
type PublishResult struct {
	Success bool                `json:"success" yaml:"success"`
	Results []PublishItemResult `json:"results" yaml:"results"`
}

// PublishRequest is the JSON body posted to the downstream sink.
type PublishRequest struct {
	Records []NormalizedRecord `json:"records"`
}
