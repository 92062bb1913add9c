// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package groupkey implements the tagged-variant CompoundKey (spec §3, C2):
// the four compound grouping keys the aggregation pipeline groups flows by,
// each able to project its outer (exporter, interface) key, name its
// variant, and encode itself deterministically for sink document IDs and
// tiebreaking.
package groupkey

import (
	"fmt"
	"strings"

	"github.com/indigo423/nephron/internal/flowrecord"
)

// Tag names the CompoundKey variant. Mirrors the teacher's convention of a
// short string discriminator carried alongside a flattened payload rather
// than a Go type switch leaking into the wire format.
type Tag string

// Variant tags, exactly as they appear in sink documents (grouped_by field).
const (
	TagExporterInterface             Tag = "EXPORTER_INTERFACE"
	TagExporterInterfaceApplication  Tag = "EXPORTER_INTERFACE_APPLICATION"
	TagExporterInterfaceHost         Tag = "EXPORTER_INTERFACE_HOST"
	TagExporterInterfaceConversation Tag = "EXPORTER_INTERFACE_CONVERSATION"
)

// CompoundKey is the sum type described in spec §3. Each constructor below
// satisfies it.
type CompoundKey interface {
	// OuterKey projects this key to its ExporterInterface prefix, the
	// partitioning axis for top-K (spec §4.6, GLOSSARY "Outer key").
	OuterKey() ExporterInterface
	// GroupedBy names the variant.
	GroupedBy() Tag
	// GroupedByKey deterministically encodes the variant's fields; used as
	// part of the sink document ID and as the tiebreak key in the top-K
	// comparator.
	GroupedByKey() string
}

func exporterPrefix(e flowrecord.Exporter, ifIndex int32) string {
	return fmt.Sprintf("%s|%s|%d|%d", e.ForeignSource, e.ForeignID, e.NodeID, ifIndex)
}

// ExporterInterface is the outer key: an exporter/interface pair. It is
// itself a valid CompoundKey (the TOTAL branch groups by exactly this).
type ExporterInterface struct {
	Exporter flowrecord.Exporter
	IfIndex  int32
}

func (k ExporterInterface) OuterKey() ExporterInterface { return k }
func (k ExporterInterface) GroupedBy() Tag               { return TagExporterInterface }
func (k ExporterInterface) GroupedByKey() string {
	return exporterPrefix(k.Exporter, k.IfIndex)
}

// ExporterInterfaceApplication groups by exporter/interface/application.
type ExporterInterfaceApplication struct {
	Outer       ExporterInterface
	Application string
}

func (k ExporterInterfaceApplication) OuterKey() ExporterInterface { return k.Outer }
func (k ExporterInterfaceApplication) GroupedBy() Tag               { return TagExporterInterfaceApplication }
func (k ExporterInterfaceApplication) GroupedByKey() string {
	return k.Outer.GroupedByKey() + "|" + k.Application
}

// ExporterInterfaceHost groups by exporter/interface/host address.
type ExporterInterfaceHost struct {
	Outer   ExporterInterface
	Address string
}

func (k ExporterInterfaceHost) OuterKey() ExporterInterface { return k.Outer }
func (k ExporterInterfaceHost) GroupedBy() Tag               { return TagExporterInterfaceHost }
func (k ExporterInterfaceHost) GroupedByKey() string {
	return k.Outer.GroupedByKey() + "|" + k.Address
}

// ExporterInterfaceConversation groups by exporter/interface/5-tuple,
// canonicalised so both directions of a bidirectional conversation hash
// equal (spec §3, invariant 5).
type ExporterInterfaceConversation struct {
	Outer        ExporterInterface
	Protocol     uint8
	SmallerAddr  string
	LargerAddr   string
	SmallerPort  uint16
	LargerPort   uint16
	Application  string
}

func (k ExporterInterfaceConversation) OuterKey() ExporterInterface { return k.Outer }
func (k ExporterInterfaceConversation) GroupedBy() Tag               { return TagExporterInterfaceConversation }
func (k ExporterInterfaceConversation) GroupedByKey() string {
	return fmt.Sprintf("%s|%d|%s:%d|%s:%d|%s",
		k.Outer.GroupedByKey(), k.Protocol, k.SmallerAddr, k.SmallerPort, k.LargerAddr, k.LargerPort, k.Application)
}

// NewExporterInterface builds the TOTAL/outer key for a flow.
func NewExporterInterface(f *flowrecord.Flow, ifIndex int32) ExporterInterface {
	return ExporterInterface{Exporter: f.Exporter, IfIndex: ifIndex}
}

// NewExporterInterfaceApplication builds the application-breakdown key.
func NewExporterInterfaceApplication(f *flowrecord.Flow, ifIndex int32) ExporterInterfaceApplication {
	return ExporterInterfaceApplication{
		Outer:       NewExporterInterface(f, ifIndex),
		Application: f.Application,
	}
}

// NewExporterInterfaceHost builds the host-breakdown key for the given
// address (the caller picks src or dst per the host-branch semantics: one
// key is emitted per distinct address seen on the flow).
func NewExporterInterfaceHost(f *flowrecord.Flow, ifIndex int32, address string) ExporterInterfaceHost {
	return ExporterInterfaceHost{
		Outer:   NewExporterInterface(f, ifIndex),
		Address: address,
	}
}

// NewExporterInterfaceConversation builds the conversation key, canonicalised
// by ordering the two endpoints lexicographically over "address:port" so
// that flow A (src->dst) and its reverse flow B (dst->src) produce an equal
// key (spec §3, §8 invariant 5, scenario S4).
func NewExporterInterfaceConversation(f *flowrecord.Flow, ifIndex int32) ExporterInterfaceConversation {
	srcEndpoint := fmt.Sprintf("%s:%05d", f.SrcAddress, f.SrcPort)
	dstEndpoint := fmt.Sprintf("%s:%05d", f.DstAddress, f.DstPort)

	smallerAddr, smallerPort := f.SrcAddress, f.SrcPort
	largerAddr, largerPort := f.DstAddress, f.DstPort
	if strings.Compare(srcEndpoint, dstEndpoint) > 0 {
		smallerAddr, smallerPort, largerAddr, largerPort = f.DstAddress, f.DstPort, f.SrcAddress, f.SrcPort
	}

	return ExporterInterfaceConversation{
		Outer:       NewExporterInterface(f, ifIndex),
		Protocol:    f.Protocol,
		SmallerAddr: smallerAddr,
		LargerAddr:  largerAddr,
		SmallerPort: smallerPort,
		LargerPort:  largerPort,
		Application: f.Application,
	}
}

// Less provides the total order over encoded keys used as the tertiary
// top-K tiebreak (spec §4.6): lexicographic over GroupedByKey().
func Less(a, b CompoundKey) bool {
	return a.GroupedByKey() < b.GroupedByKey()
}
