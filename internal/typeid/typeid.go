package typeid

import (
	"go.jetify.com/typeid/v2"
)

const (
	PrefixNode     = "node"
	PrefixGroup    = "group"
	PrefixWorkflow = "wf"
	PrefixAsset    = "asset"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewNodeID() string     { return New(PrefixNode) }
func NewGroupID() string    { return New(PrefixGroup) }
func NewWorkflowID() string { return New(PrefixWorkflow) }
func NewAssetID() string    { return New(PrefixAsset) }
