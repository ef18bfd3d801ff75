package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IntegrationConfiguration is a user's connection to a third-party cloud
// service. ServiceProperties holds the provider settings, including any
// authentication settings.
type IntegrationConfiguration struct {
	UserID            int64          `json:"userId"`
	ID                int64          `json:"id"`
	Name              string         `json:"name"`
	ServiceIdentifier string         `json:"serviceIdentifier"`
	Enabled           bool           `json:"enabled"`
	ServiceProperties map[string]any `json:"serviceProperties,omitempty"`
	Created           time.Time      `json:"created"`
	Modified          time.Time      `json:"modified"`
}

// SystemIdentifier returns a stable identifier derived from the composite key
// of the configuration. It is used as the OAuth client registration ID.
func (c IntegrationConfiguration) SystemIdentifier() string {
	return fmt.Sprintf("%d:%d", c.UserID, c.ID)
}

// ParseSystemIdentifier is the inverse of SystemIdentifier.
func ParseSystemIdentifier(s string) (userID, id int64, err error) {
	u, i, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid system identifier: %q", s)
	}
	userID, err = strconv.ParseInt(u, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid user id in system identifier %q: %w", s, err)
	}
	id, err = strconv.ParseInt(i, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid id in system identifier %q: %w", s, err)
	}
	return userID, id, nil
}

// StringProperty returns the service property named key as a trimmed string.
// Non-string values are formatted with %v.
func (c IntegrationConfiguration) StringProperty(key string) string {
	return PropertyString(c.ServiceProperties, key)
}

// PropertyString returns props[key] as a trimmed string, or "" if missing.
func PropertyString(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// DatumStreamConfiguration describes how to turn provider data into datum.
// Many streams may share one integration.
type DatumStreamConfiguration struct {
	UserID        int64  `json:"userId"`
	ID            int64  `json:"id"`
	IntegrationID int64  `json:"integrationId"`
	Name          string `json:"name"`
	Enabled       bool   `json:"enabled"`

	// ObjectID is the node the generated datum are attributed to.
	ObjectID int64 `json:"objectId"`
	// SourceID may contain {placeholder} tokens, e.g. "/SE/{siteId}".
	SourceID string `json:"sourceId"`

	Placeholders    map[string]any        `json:"placeholders,omitempty"`
	SourceValueRefs []string              `json:"sourceValueRefs,omitempty"`
	Properties      []DatumStreamProperty `json:"properties,omitempty"`
}

// PropertyType is the datum sample classification of a stream property.
type PropertyType string

const (
	PropertyTypeInstantaneous PropertyType = "i"
	PropertyTypeAccumulating  PropertyType = "a"
	PropertyTypeStatus        PropertyType = "s"
)

// DatumStreamProperty maps one provider value onto one datum property.
type DatumStreamProperty struct {
	Enabled      bool         `json:"enabled"`
	PropertyType PropertyType `json:"propertyType"`
	PropertyName string       `json:"propertyName"`
	// ValueReference is a path into the provider data, with optional
	// {placeholder} tokens, e.g. "/{siteId}/Production".
	ValueReference string `json:"valueReference"`
	// Multiplier is applied to numeric values. Zero means 1.
	Multiplier float64 `json:"multiplier,omitempty"`
}

// ControlConfiguration is one controllable point on a node that is backed by
// an integration.
type ControlConfiguration struct {
	UserID            int64          `json:"userId"`
	ID                int64          `json:"id"`
	IntegrationID     int64          `json:"integrationId"`
	NodeID            int64          `json:"nodeId"`
	ControlID         string         `json:"controlId"`
	ControlReference  string         `json:"controlReference"`
	Enabled           bool           `json:"enabled"`
	ServiceProperties map[string]any `json:"serviceProperties,omitempty"`
}
