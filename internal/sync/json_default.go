//go:build !sonic

package sync

import (
	"github.com/goccy/go-json"
)

var jsonMarshal = json.Marshal
var jsonMarshalIndent = json.MarshalIndent
var jsonUnmarshal = json.Unmarshal
