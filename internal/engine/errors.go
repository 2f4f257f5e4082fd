package engine

import "errors"

var (
	ErrNodeNotFound         = errors.New("node not found")
	ErrGroupNotFound        = errors.New("group not found")
	ErrWorkflowNotFound     = errors.New("workflow not found")
	ErrUnknownNodeType      = errors.New("unknown node type")
	ErrInvalidConnection    = errors.New("invalid connection")
	ErrDuplicateConnection  = errors.New("connection already exists")
	ErrInvalidInputOrdering = errors.New("input order must be a permutation of the current inputs")
	ErrNoMenu               = errors.New("no smart-connect menu open")
)
