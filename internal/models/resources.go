package models

// Resource is a generic object decoded from the target API.
type Resource map[string]interface{}
