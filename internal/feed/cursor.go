package feed

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Cursor marks the position after the last returned repository: the tier
// it was served from plus its sort key (recommendation score) and
// identifier within that tier. Pages are ordered tier by tier, so a single
// global position cannot resume a session; the tier index keeps later
// pages from re-entering tiers already drained. It travels to clients as
// an opaque token.
type Cursor struct {
	Tier  int     `json:"t"`
	Score float64 `json:"s"`
	ID    int64   `json:"i"`
}

// Encode serializes the cursor into its opaque token form
func (c *Cursor) Encode() string {
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor parses an opaque token. An empty token means "first page"
// and returns nil without error.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor token: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid cursor payload: %w", err)
	}
	return &c, nil
}
