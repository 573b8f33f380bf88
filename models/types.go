package models

import (
	"strconv"
	"time"
)

// Ballot categories, in display order
const (
	CategoryFavorite  = "favorite"
	CategoryHonorable = "honorable"
	CategoryNotable   = "notable"
)

var Categories = []string{CategoryFavorite, CategoryHonorable, CategoryNotable}

const (
	// FavoriteMaxRank is the fixed length of every ballot's favorite list
	FavoriteMaxRank = 20
	// MoreVotesStep is how many slots "add more" appends to a category
	MoreVotesStep = 10
	// MaxRankLimit bounds the honorable and notable lists
	MaxRankLimit = 200
)

// Result orderings
const (
	OrderByVotes  = "votes"
	OrderByArtist = "artist"
)

// SettingSecretWord names the membership secret in the setting table
const SettingSecretWord = "secret_word"

// IsCategory reports whether c names a ballot category
func IsCategory(c string) bool {
	switch c {
	case CategoryFavorite, CategoryHonorable, CategoryNotable:
		return true
	}
	return false
}

// Request types

type JoinRequest struct {
	Name       string `json:"name"`
	SecretWord string `json:"secret_word"`
}

type UpdateProfileRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type VoteEntry struct {
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	Comments string `json:"comments"`
}

// SaveBallotRequest carries the whole ballot form. Vote lists are indexed
// by category; a vote's rank is its 1-based position in the list.
// Nil Honorable/Notable keep the ballot's current maximum ranks.
type SaveBallotRequest struct {
	Anonymous bool                   `json:"anonymous"`
	Preamble  string                 `json:"preamble"`
	Postamble string                 `json:"postamble"`
	Honorable *int                   `json:"honorable,omitempty"`
	Notable   *int                   `json:"notable,omitempty"`
	Votes     map[string][]VoteEntry `json:"votes"`
}

type MoreVotesRequest struct {
	Category string `json:"category"`
}

type UpdateAdminRequest struct {
	SecretWord string `json:"secret_word"`
	OpenYears  []int  `json:"open_years"`
}

type AddYearRequest struct {
	Year int `json:"year"`
}

// MatchVoteRequest links a vote to a canonical release. Exactly one way of
// naming the release is used, checked in this order: ReleaseID,
// ReleaseMBID, then a new release built from an artist (ArtistID,
// ArtistMBID, or ArtistName with SortName) and Title.
type MatchVoteRequest struct {
	ReleaseID   string `json:"release_id,omitempty"`
	ReleaseMBID string `json:"release_mbid,omitempty"`
	ArtistID    string `json:"artist_id,omitempty"`
	ArtistMBID  string `json:"artist_mbid,omitempty"`
	ArtistName  string `json:"artist_name,omitempty"`
	SortName    string `json:"sortname,omitempty"`
	ArtistURL   string `json:"artist_url,omitempty"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	ApplyToAll  bool   `json:"apply_to_all,omitempty"`
}

// Response types

type JoinResponse struct {
	VoterID    string `json:"voter_id"`
	VoterToken string `json:"voter_token"`
}

type VoteSlot struct {
	ID        string  `json:"id,omitempty"`
	Rank      int     `json:"rank"`
	Artist    string  `json:"artist"`
	Title     string  `json:"title"`
	Comments  string  `json:"comments"`
	ReleaseID *string `json:"release_id,omitempty"`
}

type BallotResponse struct {
	Year       int                   `json:"year"`
	OtherYears []int                 `json:"other_years"`
	Ballot     Ballot                `json:"ballot"`
	Votes      map[string][]VoteSlot `json:"votes"`
}

type PublicBallotResponse struct {
	ID        string                `json:"id"`
	Year      int                   `json:"year"`
	Name      string                `json:"name"`
	URL       string                `json:"url,omitempty"`
	Preamble  string                `json:"preamble"`
	Postamble string                `json:"postamble"`
	Votes     map[string][]VoteSlot `json:"votes"`
}

type MoreVotesResponse struct {
	Category string `json:"category"`
	MaxRank  int    `json:"max_rank"`
}

type AdminResponse struct {
	SecretWord string `json:"secret_word"`
	Years      []Year `json:"years"`
	// Unranked lists years closed by the update whose ranking failed
	Unranked []int `json:"unranked,omitempty"`
}

type ResultsResponse struct {
	Year     Year            `json:"year"`
	Order    string          `json:"order"`
	Releases []RankedRelease `json:"releases"`
}

type RankResponse struct {
	Year     Year            `json:"year"`
	Releases []RankedRelease `json:"releases"`
}

type ArtistResponse struct {
	Artist   Artist    `json:"artist"`
	Releases []Release `json:"releases"`
}

type ReleaseVote struct {
	BallotID string `json:"ballot_id"`
	Name     string `json:"name"`
	Year     int    `json:"year"`
	Category string `json:"category"`
	Rank     int    `json:"rank"`
	Comments string `json:"comments"`
}

type ReleaseResponse struct {
	Release Release       `json:"release"`
	Artist  Artist        `json:"artist"`
	Votes   []ReleaseVote `json:"votes"`
}

type UnmatchedGroup struct {
	Artist  string   `json:"artist"`
	Title   string   `json:"title"`
	VoteIDs []string `json:"vote_ids"`
}

type UnmatchedResponse struct {
	Year   int              `json:"year"`
	Groups []UnmatchedGroup `json:"groups"`
}

type Candidate struct {
	MBID       string  `json:"mbid"`
	Title      string  `json:"title"`
	Type       string  `json:"type,omitempty"`
	Score      int     `json:"score"`
	ArtistMBID string  `json:"artist_mbid"`
	ArtistName string  `json:"artist_name"`
	SortName   string  `json:"sortname"`
	LocalID    *string `json:"local_id,omitempty"`
}

type CandidatesResponse struct {
	Vote          Vote        `json:"vote"`
	Artist        *Artist     `json:"artist,omitempty"`
	LocalReleases []Release   `json:"local_releases"`
	Candidates    []Candidate `json:"candidates"`
}

type MatchVoteResponse struct {
	Release Release `json:"release"`
	Matched int     `json:"matched"`
}

// Domain types

type Year struct {
	Year        int        `json:"year"`
	VotingOpen  bool       `json:"voting_open"`
	BallotCount int        `json:"ballot_count"`
	VoteCount   int        `json:"vote_count"`
	RankedAt    *time.Time `json:"ranked_at,omitempty"`
	RankedAgo   string     `json:"ranked_ago,omitempty"`
}

type Voter struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"-"` // Never expose in JSON
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Year      *int      `json:"year,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Ballot struct {
	ID        string    `json:"id"`
	VoterID   string    `json:"-"`
	Year      int       `json:"year"`
	Anonymous bool      `json:"anonymous"`
	Preamble  string    `json:"preamble"`
	Postamble string    `json:"postamble"`
	Honorable int       `json:"honorable"`
	Notable   int       `json:"notable"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxRank returns the highest rank a vote may have in the category
func (b Ballot) MaxRank(category string) int {
	switch category {
	case CategoryFavorite:
		return FavoriteMaxRank
	case CategoryHonorable:
		return b.Honorable
	case CategoryNotable:
		return b.Notable
	}
	return 0
}

// DisplayName is the name shown next to the ballot's votes
func (b Ballot) DisplayName(voterName string) string {
	if b.Anonymous {
		return AnonymousName(b.ID)
	}
	return voterName
}

func AnonymousName(ballotID string) string {
	return "Anonymous Chugchanga-L Member #" + ballotID
}

type Vote struct {
	ID        string  `json:"id"`
	BallotID  string  `json:"ballot_id"`
	Category  string  `json:"category"`
	Rank      int     `json:"rank"`
	Artist    string  `json:"artist"`
	Title     string  `json:"title"`
	Comments  string  `json:"comments"`
	ReleaseID *string `json:"release_id,omitempty"`
}

// IsBlank reports whether the vote carries no text at all
func (v VoteEntry) IsBlank() bool {
	return v.Artist == "" && v.Title == "" && v.Comments == ""
}

type Artist struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	SortName string  `json:"sortname"`
	MBID     *string `json:"mbid,omitempty"`
	URL      *string `json:"url,omitempty"`
}

type Release struct {
	ID       string  `json:"id"`
	ArtistID string  `json:"artist_id"`
	Title    string  `json:"title"`
	MBID     *string `json:"mbid,omitempty"`
	URL      *string `json:"url,omitempty"`
}

// Local is the site path of the release on its artist page
func (r Release) Local() string {
	return "/artists/" + r.ArtistID + "#" + r.ID
}

type RankedRelease struct {
	Year       int    `json:"year"`
	Rank       int    `json:"rank"`
	RankLabel  string `json:"rank_label"`
	ReleaseID  string `json:"release_id"`
	ArtistID   string `json:"artist_id"`
	ArtistName string `json:"artist_name"`
	SortName   string `json:"sortname"`
	Title      string `json:"title"`
	Favorite   int    `json:"favorite"`
	Honorable  int    `json:"honorable"`
	Notable    int    `json:"notable"`
	Link       string `json:"link"`
}

// VoteAnchor is the fragment identifying a vote on its ballot page
func VoteAnchor(category string, rank int) string {
	return category + "-" + strconv.Itoa(rank)
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
