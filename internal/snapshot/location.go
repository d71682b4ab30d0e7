package snapshot

import (
	"fmt"
	"strings"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
)

// Location addresses an export: a bucket and the object prefix under it.
type Location struct {
	Scheme string
	Bucket string
	Prefix string
}

// ExportLocation builds the location of one export.
func ExportLocation(scheme, bucket, orgID, verticalKey, exportID string) Location {
	return Location{
		Scheme: scheme,
		Bucket: bucket,
		Prefix: fmt.Sprintf("orgs/%s/verticals/%s/exports/%s", orgID, verticalKey, exportID),
	}
}

// ParseLocation parses "<scheme>://<bucket>/<prefix>".
func ParseLocation(uri string) (Location, error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return Location{}, berrors.Invalid("snapshot location must be <scheme>://bucket/path: %s", uri)
	}
	bucket, prefix, ok := strings.Cut(rest, "/")
	prefix = strings.TrimRight(prefix, "/")
	if !ok || bucket == "" || prefix == "" {
		return Location{}, berrors.Invalid("snapshot location must include object prefix path: %s", uri)
	}
	return Location{Scheme: scheme, Bucket: bucket, Prefix: prefix}, nil
}

func (l Location) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
}
