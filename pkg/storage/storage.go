package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

var (
	ErrIntegrationNotFound = errors.New("integration not found")
	ErrDatumStreamNotFound = errors.New("datum stream not found")
	ErrControlNotFound     = errors.New("control not found")
)

// controlDocID is the document ID of a control, unique per node. Control IDs
// are usually paths so they are escaped to stay a single document segment.
func controlDocID(nodeID int64, controlID string) (string, error) {
	if controlID == "" {
		return "", fmt.Errorf("controlID cannot be empty")
	}
	return strconv.FormatInt(nodeID, 10) + ":" + url.PathEscape(controlID), nil
}
