// Package domain holds the source record shape read from archive members and
// the typed rows written to the six target relations.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// CreatedAtLayout is the timestamp format used by the platform for both
// posts and user profiles, e.g. "Wed Oct 10 20:19:24 +0000 2018".
const CreatedAtLayout = "Mon Jan 02 15:04:05 -0700 2006"

// Tweet is one decoded line of an archive member.
//
// Pointer fields are optional in the source: nil means the key was absent or
// null. Entity lists inside Entities use nil for "absent" and an empty, non-nil
// slice for "present but empty", which is what encoding/json produces.
type Tweet struct {
	ID                  *int64         `json:"id"`
	CreatedAt           *string        `json:"created_at"`
	Text                *string        `json:"text"`
	Source              *string        `json:"source"`
	Lang                *string        `json:"lang"`
	User                *User          `json:"user"`
	InReplyToStatusID   *int64         `json:"in_reply_to_status_id"`
	InReplyToUserID     *int64         `json:"in_reply_to_user_id"`
	InReplyToScreenName *string        `json:"in_reply_to_screen_name"`
	QuotedStatusID      *int64         `json:"quoted_status_id"`
	RetweetCount        *int64         `json:"retweet_count"`
	QuoteCount          *int64         `json:"quote_count"`
	FavoriteCount       *int64         `json:"favorite_count"`
	WithheldCopyright   *bool          `json:"withheld_copyright"`
	WithheldInCountries []string       `json:"withheld_in_countries"`
	Geo                 *Geo           `json:"geo"`
	Place               *Place         `json:"place"`
	Entities            *Entities      `json:"entities"`
	ExtendedEntities    *Entities      `json:"extended_entities"`
	ExtendedTweet       *ExtendedTweet `json:"extended_tweet"`
}

// ExtendedTweet carries the long-form body and its entity containers for
// posts exceeding the default length limit.
type ExtendedTweet struct {
	FullText         *string   `json:"full_text"`
	Entities         *Entities `json:"entities"`
	ExtendedEntities *Entities `json:"extended_entities"`
}

// User is the embedded author profile.
type User struct {
	ID                  *int64   `json:"id"`
	CreatedAt           *string  `json:"created_at"`
	ScreenName          *string  `json:"screen_name"`
	Name                *string  `json:"name"`
	Location            *string  `json:"location"`
	URL                 *string  `json:"url"`
	Description         *string  `json:"description"`
	Protected           *bool    `json:"protected"`
	Verified            *bool    `json:"verified"`
	FriendsCount        *int64   `json:"friends_count"`
	ListedCount         *int64   `json:"listed_count"`
	FavouritesCount     *int64   `json:"favourites_count"`
	StatusesCount       *int64   `json:"statuses_count"`
	WithheldInCountries []string `json:"withheld_in_countries"`
}

// Entities is an entity container; both the default and the extended
// containers share this shape.
type Entities struct {
	URLs         []URLEntity     `json:"urls"`
	UserMentions []MentionEntity `json:"user_mentions"`
	Hashtags     []TextEntity    `json:"hashtags"`
	Symbols      []TextEntity    `json:"symbols"`
	Media        []MediaEntity   `json:"media"`
}

type URLEntity struct {
	ExpandedURL *string `json:"expanded_url"`
}

type MentionEntity struct {
	ID         *int64  `json:"id"`
	Name       *string `json:"name"`
	ScreenName *string `json:"screen_name"`
}

// TextEntity is a hashtag or a cashtag (symbol).
type TextEntity struct {
	Text string `json:"text"`
}

type MediaEntity struct {
	MediaURL *string `json:"media_url"`
	Type     *string `json:"type"`
}

// Geo is the exact location attached to a post. Decoding never fails: any
// shape other than {"type": ..., "coordinates": [n, n]} leaves Coordinates
// empty so the post is stored without a geometry.
type Geo struct {
	Type        string
	Coordinates []string // textual numbers, exactly as they appeared
}

func (g *Geo) UnmarshalJSON(b []byte) error {
	*g = Geo{}
	var raw struct {
		Type        any   `json:"type"`
		Coordinates []any `json:"coordinates"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil
	}
	if s, ok := raw.Type.(string); ok {
		g.Type = s
	}
	coords := make([]string, 0, len(raw.Coordinates))
	for _, c := range raw.Coordinates {
		n, ok := c.(json.Number)
		if !ok {
			return nil
		}
		if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
			return nil
		}
		coords = append(coords, n.String())
	}
	g.Coordinates = coords
	return nil
}

// IsPoint reports whether the geo object describes a single coordinate pair.
// A missing type is accepted; the archives predating the type field carry
// only the coordinates.
func (g *Geo) IsPoint() bool {
	if g == nil || len(g.Coordinates) != 2 {
		return false
	}
	return g.Type == "" || strings.EqualFold(g.Type, "point")
}

// Place is the coarse location attached to a post. Like Geo, decoding is
// lenient: a field of the wrong type is treated as absent.
type Place struct {
	FullName    *string
	CountryCode *string
}

func (p *Place) UnmarshalJSON(b []byte) error {
	*p = Place{}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	if s, ok := raw["full_name"].(string); ok {
		p.FullName = &s
	}
	if s, ok := raw["country_code"].(string); ok {
		p.CountryCode = &s
	}
	return nil
}
