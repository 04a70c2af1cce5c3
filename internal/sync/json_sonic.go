//go:build sonic

package sync

import (
	"github.com/bytedance/sonic"
)

var jsonMarshal = sonic.Marshal
var jsonMarshalIndent = sonic.MarshalIndent
var jsonUnmarshal = sonic.Unmarshal
