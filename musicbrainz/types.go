// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package musicbrainz

import "encoding/xml"

// XML namespaces of the ws/1 metadata documents
const (
	NamespaceMMD = "http://musicbrainz.org/ns/mmd-1.0#"
	NamespaceExt = "http://musicbrainz.org/ns/ext-1.0#"
)

type Artist struct {
	ID       string `xml:"id,attr"`
	Type     string `xml:"type,attr,omitempty"`
	Name     string `xml:"http://musicbrainz.org/ns/mmd-1.0# name"`
	SortName string `xml:"http://musicbrainz.org/ns/mmd-1.0# sort-name"`
}

type ReleaseGroup struct {
	ID     string `xml:"id,attr"`
	Type   string `xml:"type,attr,omitempty"`
	Score  int    `xml:"http://musicbrainz.org/ns/ext-1.0# score,attr,omitempty"`
	Title  string `xml:"http://musicbrainz.org/ns/mmd-1.0# title"`
	Artist Artist `xml:"http://musicbrainz.org/ns/mmd-1.0# artist"`
}

type releaseGroupList struct {
	Count  int            `xml:"count,attr"`
	Offset int            `xml:"offset,attr"`
	Items  []ReleaseGroup `xml:"http://musicbrainz.org/ns/mmd-1.0# release-group"`
}

// metadata is the root element of every ws/1 response
type metadata struct {
	XMLName          xml.Name         `xml:"http://musicbrainz.org/ns/mmd-1.0# metadata"`
	Artist           *Artist          `xml:"http://musicbrainz.org/ns/mmd-1.0# artist"`
	ReleaseGroup     *ReleaseGroup    `xml:"http://musicbrainz.org/ns/mmd-1.0# release-group"`
	ReleaseGroupList releaseGroupList `xml:"http://musicbrainz.org/ns/mmd-1.0# release-group-list"`
}
