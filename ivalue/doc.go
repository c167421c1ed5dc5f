// Package ivalue holds the value model produced by deserialization: tensors,
// tagged containers, class definitions and object instances with slots.
package ivalue
