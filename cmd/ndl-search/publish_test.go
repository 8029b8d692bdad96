// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ndl-search/pkg/types"
)

func TestDecodeRecords(t *testing.T) {
	want := []types.NormalizedRecord{{ID: "ndl:1", Title: "茶の本", Creators: []string{"岡倉, 覚三"}}}

	tests := []struct {
		name string
		data string
		ext  string
	}{
		{"json list", `[{"id":"ndl:1","title":"茶の本","creators":["岡倉, 覚三"]}]`, ".json"},
		{"json wrapped", `{"records":[{"id":"ndl:1","title":"茶の本","creators":["岡倉, 覚三"]}]}`, ".json"},
		{"stdin json", `  [{"id":"ndl:1","title":"茶の本","creators":["岡倉, 覚三"]}]`, ""},
		{"yaml list", "- id: ndl:1\n  title: 茶の本\n  creators: [\"岡倉, 覚三\"]\n", ".yaml"},
		{"yaml wrapped", "records:\n  - id: ndl:1\n    title: 茶の本\n    creators: [\"岡倉, 覚三\"]\n", ".YML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRecords([]byte(tt.data), tt.ext)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeRecordsErrors(t *testing.T) {
	_, err := decodeRecords([]byte(`{"records":`), ".json")
	assert.Error(t, err)

	_, err = decodeRecords([]byte(`a,b`), ".csv")
	assert.Error(t, err)
}

func TestFailedCount(t *testing.T) {
	res := types.PublishResult{Results: []types.PublishItemResult{
		{ID: "a", Status: 201}, {ID: "b", Status: 400}, {ID: "c", Status: 500},
	}}
	assert.Equal(t, 2, failedCount(res))
}
