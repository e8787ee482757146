// Package idhash derives the deterministic identifiers stored alongside
// analyses, so re-running over identical inputs never creates new rows.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Namespace is the UUID namespace for analysis IDs.
var Namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("token-listing-lab/analysis"))

func key(parts ...string) []byte {
	return []byte(strings.Join(parts, "|"))
}

// ComputeInputDigest is the hex SHA-256 of serialized analysis inputs.
func ComputeInputDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ComputeAnalysisID is UUIDv5 over lower(token), method and the input digest.
func ComputeAnalysisID(token, method, inputDigest string) uuid.UUID {
	return uuid.NewSHA1(Namespace, key(strings.ToLower(token), method, inputDigest))
}

// ComputeAllocationID keys one raw allocation row: hex SHA-256 over
// lower(token), source, the trimmed label and its position in the source.
func ComputeAllocationID(token, source, label string, index int) string {
	return ComputeInputDigest(key(strings.ToLower(token), source, strings.TrimSpace(label), strconv.Itoa(index)))
}
