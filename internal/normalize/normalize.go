// Package normalize maps one decoded tweet into typed rows for the six target
// relations. It is a pure transformation: no I/O, no shared state.
//
// Field resolution, in priority order where several sources exist:
//
//   - body text: extended_tweet.full_text, else text (missing text is fatal);
//   - entity lists: extended_tweet.entities.<list>, else entities.<list>;
//   - media: extended_tweet.extended_entities, else extended_entities, else
//     entities, else none;
//   - geo, place, reply target and counters are best-effort and degrade to nil.
package normalize

import (
	"strings"
	"time"
	"unicode/utf8"

	"tweetloader/internal/domain"
)

// PointTag is the well-known-text geometry tag used for post locations.
const PointTag = "POINT"

// Rows is everything one record contributes to a load.
type Rows struct {
	// Authors holds the hydrated author first, then the reply-target
	// placeholder (if any), then one placeholder per distinct mention.
	Authors  []domain.Author
	Post     domain.Post
	Mentions []domain.Mention
	Tags     []domain.Tag
	Media    []domain.Media
	URLs     []domain.URL

	reply bool
}

// Origins splits Authors by where each row came from.
func (r Rows) Origins() (hydrated domain.Author, reply, mentions []domain.Author) {
	if len(r.Authors) == 0 {
		return domain.Author{}, nil, nil
	}
	rest := r.Authors[1:]
	if r.reply {
		return r.Authors[0], rest[:1], rest[1:]
	}
	return r.Authors[0], nil, rest
}

// Record normalizes t. The only error it returns is a *domain.FieldError
// (errors.Is(err, domain.ErrMalformedRecord)) for a missing mandatory field.
func Record(t domain.Tweet) (Rows, error) {
	if t.ID == nil {
		return Rows{}, &domain.FieldError{Field: "id"}
	}
	id := *t.ID

	createdAt, err := timestamp(t.CreatedAt, "created_at", id)
	if err != nil {
		return Rows{}, err
	}
	author, err := hydratedAuthor(t.User, createdAt, id)
	if err != nil {
		return Rows{}, err
	}
	text := body(t)
	if text == nil {
		return Rows{}, &domain.FieldError{Field: "text", PostID: id}
	}

	out := Rows{Authors: []domain.Author{author}}

	if t.InReplyToUserID != nil {
		out.reply = true
		out.Authors = append(out.Authors, domain.Author{
			ID:         *t.InReplyToUserID,
			ScreenName: TextPtr(t.InReplyToScreenName),
		})
	}

	placeName, country, state := place(t.Place)
	out.Post = domain.Post{
		ID:                  id,
		AuthorID:            author.ID,
		CreatedAt:           createdAt,
		InReplyToStatusID:   t.InReplyToStatusID,
		InReplyToUserID:     t.InReplyToUserID,
		QuotedStatusID:      t.QuotedStatusID,
		Geo:                 point(t.Geo),
		RetweetCount:        t.RetweetCount,
		QuoteCount:          t.QuoteCount,
		FavoriteCount:       t.FavoriteCount,
		WithheldCopyright:   t.WithheldCopyright,
		WithheldInCountries: domain.List(t.WithheldInCountries),
		PlaceName:           placeName,
		CountryCode:         country,
		StateCode:           state,
		Lang:                t.Lang,
		Text:                Text(*text),
		Source:              TextPtr(t.Source),
	}

	for _, u := range entityList(t, func(e *domain.Entities) []domain.URLEntity { return e.URLs }) {
		if u.ExpandedURL == nil {
			continue
		}
		out.URLs = append(out.URLs, domain.URL{PostID: id, URL: Text(*u.ExpandedURL)})
	}

	seen := make(map[int64]struct{})
	for _, m := range entityList(t, func(e *domain.Entities) []domain.MentionEntity { return e.UserMentions }) {
		if m.ID == nil {
			continue
		}
		if _, dup := seen[*m.ID]; dup {
			continue
		}
		seen[*m.ID] = struct{}{}
		out.Authors = append(out.Authors, domain.Author{
			ID:         *m.ID,
			Name:       TextPtr(m.Name),
			ScreenName: TextPtr(m.ScreenName),
		})
		out.Mentions = append(out.Mentions, domain.Mention{PostID: id, AuthorID: *m.ID})
	}

	for _, h := range entityList(t, func(e *domain.Entities) []domain.TextEntity { return e.Hashtags }) {
		out.Tags = append(out.Tags, domain.Tag{PostID: id, Tag: Text("#" + h.Text)})
	}
	for _, s := range entityList(t, func(e *domain.Entities) []domain.TextEntity { return e.Symbols }) {
		out.Tags = append(out.Tags, domain.Tag{PostID: id, Tag: Text("$" + s.Text)})
	}

	for _, m := range media(t) {
		if m.MediaURL == nil {
			continue
		}
		out.Media = append(out.Media, domain.Media{PostID: id, URL: Text(*m.MediaURL), Type: m.Type})
	}

	return out, nil
}

func hydratedAuthor(u *domain.User, seenAt time.Time, postID int64) (domain.Author, error) {
	if u == nil {
		return domain.Author{}, &domain.FieldError{Field: "user", PostID: postID}
	}
	required := []struct {
		field   string
		missing bool
	}{
		{"user.id", u.ID == nil},
		{"user.screen_name", u.ScreenName == nil},
		{"user.protected", u.Protected == nil},
		{"user.verified", u.Verified == nil},
		{"user.friends_count", u.FriendsCount == nil},
		{"user.listed_count", u.ListedCount == nil},
		{"user.favourites_count", u.FavouritesCount == nil},
		{"user.statuses_count", u.StatusesCount == nil},
	}
	for _, r := range required {
		if r.missing {
			return domain.Author{}, &domain.FieldError{Field: r.field, PostID: postID}
		}
	}
	created, err := timestamp(u.CreatedAt, "user.created_at", postID)
	if err != nil {
		return domain.Author{}, err
	}
	return domain.Author{
		ID:                  *u.ID,
		CreatedAt:           &created,
		UpdatedAt:           &seenAt,
		ScreenName:          TextPtr(u.ScreenName),
		Name:                TextPtr(u.Name),
		Location:            TextPtr(u.Location),
		URL:                 TextPtr(u.URL),
		Description:         TextPtr(u.Description),
		Protected:           u.Protected,
		Verified:            u.Verified,
		FriendsCount:        u.FriendsCount,
		ListedCount:         u.ListedCount,
		FavouritesCount:     u.FavouritesCount,
		StatusesCount:       u.StatusesCount,
		WithheldInCountries: domain.List(u.WithheldInCountries),
	}, nil
}

func timestamp(s *string, field string, postID int64) (time.Time, error) {
	if s == nil {
		return time.Time{}, &domain.FieldError{Field: field, PostID: postID}
	}
	ts, err := time.Parse(domain.CreatedAtLayout, *s)
	if err != nil {
		return time.Time{}, &domain.FieldError{Field: field, PostID: postID, Err: err}
	}
	return ts, nil
}

func body(t domain.Tweet) *string {
	if t.ExtendedTweet != nil && t.ExtendedTweet.FullText != nil {
		return t.ExtendedTweet.FullText
	}
	return t.Text
}

// entityList resolves one entity list: the extended container wins when it
// carries the list at all (even empty), otherwise the default container.
func entityList[T any](t domain.Tweet, pick func(*domain.Entities) []T) []T {
	if t.ExtendedTweet != nil && t.ExtendedTweet.Entities != nil {
		if l := pick(t.ExtendedTweet.Entities); l != nil {
			return l
		}
	}
	if t.Entities != nil {
		return pick(t.Entities)
	}
	return nil
}

func media(t domain.Tweet) []domain.MediaEntity {
	var containers []*domain.Entities
	if t.ExtendedTweet != nil {
		containers = append(containers, t.ExtendedTweet.ExtendedEntities)
	}
	containers = append(containers, t.ExtendedEntities, t.Entities)
	for _, c := range containers {
		if c != nil && c.Media != nil {
			return c.Media
		}
	}
	return nil
}

func point(g *domain.Geo) *domain.Point {
	if !g.IsPoint() {
		return nil
	}
	return &domain.Point{Tag: PointTag, Coords: g.Coordinates[0] + " " + g.Coordinates[1]}
}

// place resolves place name, country code and state code independently.
func place(p *domain.Place) (name, country, state *string) {
	if p == nil {
		return nil, nil, nil
	}
	name = TextPtr(p.FullName)
	if p.CountryCode != nil {
		cc := strings.ToLower(*p.CountryCode)
		country = &cc
	}
	return name, country, StateCode(country, p.FullName)
}

// StateCode derives a two-letter state code for US places from the text
// after the last comma of the place's full name ("Austin, TX" -> "tx").
// Anything longer than two characters, or outside the US, yields nil; an
// empty suffix ("Austin,") yields "".
func StateCode(countryCode, fullName *string) *string {
	if countryCode == nil || *countryCode != "us" || fullName == nil {
		return nil
	}
	s := *fullName
	if i := strings.LastIndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	sc := strings.ToLower(strings.TrimSpace(s))
	if utf8.RuneCountInString(sc) > 2 {
		return nil
	}
	sc = Text(sc)
	return &sc
}
