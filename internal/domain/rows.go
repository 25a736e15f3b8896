package domain

import (
	"strconv"
	"time"
)

// Table names of the six target relations.
const (
	TableAuthors  = "users"
	TablePosts    = "tweets"
	TableMentions = "tweet_mentions"
	TableTags     = "tweet_tags"
	TableMedia    = "tweet_media"
	TableURLs     = "tweet_urls"
)

// List is a text array value (e.g. withheld_in_countries). Dialects decide
// how it is bound: native array on Postgres, JSON text elsewhere.
type List []string

// Point is a well-known-text point split into its tag ("POINT") and its
// parenthesized body ("<x> <y>"); the store joins them server-side.
type Point struct {
	Tag    string
	Coords string
}

// Column lists are fixed per relation; Values() of the matching row type
// returns exactly one value per column, in this order.
var (
	AuthorColumns = []string{
		"id_users", "created_at", "updated_at", "screen_name", "name",
		"location", "url", "description", "protected", "verified",
		"friends_count", "listed_count", "favourites_count", "statuses_count",
		"withheld_in_countries",
	}
	PostColumns = []string{
		"id_tweets", "id_users", "created_at", "in_reply_to_status_id",
		"in_reply_to_user_id", "quoted_status_id", "geo", "retweet_count",
		"quote_count", "favorite_count", "withheld_copyright",
		"withheld_in_countries", "place_name", "country_code", "state_code",
		"lang", "text", "source",
	}
	MentionColumns = []string{"id_tweets", "id_users"}
	TagColumns     = []string{"id_tweets", "tag"}
	MediaColumns   = []string{"id_tweets", "url", "type"}
	URLColumns     = []string{"id_tweets", "url"}
)

// PostGeoColumn is the index of "geo" in PostColumns.
const PostGeoColumn = 6

// Author is a row of the users relation. A placeholder author carries only
// ID and ScreenName (and Name for mentions); everything else is nil.
type Author struct {
	ID                  int64
	CreatedAt           *time.Time
	UpdatedAt           *time.Time
	ScreenName          *string
	Name                *string
	Location            *string
	URL                 *string
	Description         *string
	Protected           *bool
	Verified            *bool
	FriendsCount        *int64
	ListedCount         *int64
	FavouritesCount     *int64
	StatusesCount       *int64
	WithheldInCountries List
}

// Hydrated reports whether the row was built from a full profile.
func (a Author) Hydrated() bool { return a.CreatedAt != nil }

func (a Author) Values() []any {
	return []any{
		a.ID, opt(a.CreatedAt), opt(a.UpdatedAt), opt(a.ScreenName), opt(a.Name),
		opt(a.Location), opt(a.URL), opt(a.Description), opt(a.Protected), opt(a.Verified),
		opt(a.FriendsCount), opt(a.ListedCount), opt(a.FavouritesCount), opt(a.StatusesCount),
		list(a.WithheldInCountries),
	}
}

func (a Author) AppendKey(dst []byte) []byte { return strconv.AppendInt(dst, a.ID, 10) }

// Post is a row of the tweets relation.
type Post struct {
	ID                  int64
	AuthorID            int64
	CreatedAt           time.Time
	InReplyToStatusID   *int64
	InReplyToUserID     *int64
	QuotedStatusID      *int64
	Geo                 *Point
	RetweetCount        *int64
	QuoteCount          *int64
	FavoriteCount       *int64
	WithheldCopyright   *bool
	WithheldInCountries List
	PlaceName           *string
	CountryCode         *string
	StateCode           *string
	Lang                *string
	Text                string
	Source              *string
}

// Values returns the geo column as a Point, or nil when the post has no
// geometry. The statement builder turns it into a server-side expression.
func (p Post) Values() []any {
	var geo any
	if p.Geo != nil {
		geo = *p.Geo
	}
	return []any{
		p.ID, p.AuthorID, p.CreatedAt, opt(p.InReplyToStatusID),
		opt(p.InReplyToUserID), opt(p.QuotedStatusID), geo, opt(p.RetweetCount),
		opt(p.QuoteCount), opt(p.FavoriteCount), opt(p.WithheldCopyright),
		list(p.WithheldInCountries), opt(p.PlaceName), opt(p.CountryCode), opt(p.StateCode),
		opt(p.Lang), p.Text, opt(p.Source),
	}
}

func (p Post) AppendKey(dst []byte) []byte { return strconv.AppendInt(dst, p.ID, 10) }

type Mention struct {
	PostID   int64
	AuthorID int64
}

func (m Mention) Values() []any { return []any{m.PostID, m.AuthorID} }

func (m Mention) AppendKey(dst []byte) []byte {
	dst = strconv.AppendInt(dst, m.PostID, 10)
	dst = append(dst, 0)
	return strconv.AppendInt(dst, m.AuthorID, 10)
}

// Tag is a hashtag ("#go") or cashtag ("$TSLA") used by a post.
type Tag struct {
	PostID int64
	Tag    string
}

func (t Tag) Values() []any { return []any{t.PostID, t.Tag} }

func (t Tag) AppendKey(dst []byte) []byte {
	dst = strconv.AppendInt(dst, t.PostID, 10)
	dst = append(dst, 0)
	return append(dst, t.Tag...)
}

type Media struct {
	PostID int64
	URL    string
	Type   *string
}

func (m Media) Values() []any { return []any{m.PostID, m.URL, opt(m.Type)} }

func (m Media) AppendKey(dst []byte) []byte {
	dst = strconv.AppendInt(dst, m.PostID, 10)
	dst = append(dst, 0)
	return append(dst, m.URL...)
}

type URL struct {
	PostID int64
	URL    string
}

func (u URL) Values() []any { return []any{u.PostID, u.URL} }

func (u URL) AppendKey(dst []byte) []byte {
	dst = strconv.AppendInt(dst, u.PostID, 10)
	dst = append(dst, 0)
	return append(dst, u.URL...)
}

// opt dereferences p so drivers see a plain value or an untyped nil.
func opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func list(l List) any {
	if l == nil {
		return nil
	}
	return l
}
