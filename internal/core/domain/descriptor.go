package domain

import (
	"fmt"
	"strings"
)

// ConfType names a configuration descriptor variant.
type ConfType string

const (
	ConfTypeNative  ConfType = "drunc"
	ConfTypeSegment ConfType = "oks"
	ConfTypeLegacy  ConfType = "daqconf"
)

// ParseConfType accepts the command-line spelling of a conf type.
func ParseConfType(s string) (ConfType, error) {
	switch ConfType(strings.ToLower(s)) {
	case ConfTypeNative:
		return ConfTypeNative, nil
	case ConfTypeSegment:
		return ConfTypeSegment, nil
	case ConfTypeLegacy:
		return ConfTypeLegacy, nil
	}
	return "", fmt.Errorf("unknown configuration type %q", s)
}

// Descriptor is a configuration input to the boot request compiler.
type Descriptor interface {
	ConfType() ConfType
}

// NativeBootPlan is a structured JSON(C) boot document, either inline or read from Path.
type NativeBootPlan struct {
	Path     string
	Document []byte
}

func (NativeBootPlan) ConfType() ConfType { return ConfTypeNative }

// SegmentDatabase references an external hierarchical segment description.
type SegmentDatabase struct {
	Reference string
}

func (SegmentDatabase) ConfType() ConfType { return ConfTypeSegment }

// LegacyDirectory is a directory-based configuration. It cannot be compiled.
type LegacyDirectory struct {
	Path string
}

func (LegacyDirectory) ConfType() ConfType { return ConfTypeLegacy }

// NewDescriptor builds the descriptor variant named by t around ref.
func NewDescriptor(t ConfType, ref string) Descriptor {
	switch t {
	case ConfTypeNative:
		return NativeBootPlan{Path: ref}
	case ConfTypeSegment:
		return SegmentDatabase{Reference: ref}
	default:
		return LegacyDirectory{Path: ref}
	}
}
