package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// callIDNamespace scopes synthesized tool-call ids.
var callIDNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/tjfontaine/polyglot-llm-wire/call-id"))

// SyntheticCallID derives a stable id for a tool call that arrived without
// one. ordinal counts earlier calls to the same function in the same scope,
// so repeated calls to one function get distinct ids.
func SyntheticCallID(name string, ordinal int) string {
	return "call_" + uuid.NewSHA1(callIDNamespace, []byte(name+"#"+strconv.Itoa(ordinal))).String()
}
