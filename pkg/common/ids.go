package common

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

const idLength = 12

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:idLength]
}

// EntityID returns the stable id of the entity identified by (type, name).
func EntityID(entityType, name string) string {
	return shortHash(entityType + ":" + name)
}

// RelationshipID returns the stable id of a relationship.
func RelationshipID(sourceID, relType, targetID string) string {
	return shortHash(sourceID + "-" + relType + "-" + targetID)
}

// CommunityID returns the stable id of the idx-th community at level.
func CommunityID(level, idx int) string {
	return shortHash(fmt.Sprintf("community-%d-%d", level, idx))
}
