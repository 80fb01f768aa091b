package models

import (
	"fmt"
	"time"
)

type UserType string

const (
	UserTypeStar      UserType = "star"
	UserTypeRemaining UserType = "remaining"
)

func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case UserTypeStar, UserTypeRemaining:
		return UserType(s), nil
	}
	return "", fmt.Errorf("unknown user type %q (want star or remaining)", s)
}

// Substep names one resumable stage of the friend analysis
type Substep string

const (
	SubstepFetchGraph      Substep = "fetch-graph"
	SubstepExtractProfiles Substep = "extract-profiles"
	SubstepGeocode         Substep = "geocode"
	SubstepAggregate       Substep = "aggregate"
)

// Substeps in execution order
var Substeps = []Substep{
	SubstepFetchGraph,
	SubstepExtractProfiles,
	SubstepGeocode,
	SubstepAggregate,
}

func ParseSubstep(s string) (Substep, error) {
	for _, sub := range Substeps {
		if string(sub) == s {
			return sub, nil
		}
	}
	// numeric aliases used by operators of the earlier tooling
	switch s {
	case "3.1", "1":
		return SubstepFetchGraph, nil
	case "3.2", "2":
		return SubstepExtractProfiles, nil
	case "3.3", "3":
		return SubstepGeocode, nil
	case "3.4", "4":
		return SubstepAggregate, nil
	}
	return "", fmt.Errorf("unknown substep %q", s)
}

type User struct {
	ID              string   `json:"id"`
	Username        string   `json:"username,omitempty"`
	FollowerCount   int      `json:"follower_count"`
	FollowingCount  int      `json:"following_count"`
	RawSelfLocation string   `json:"raw_self_location,omitempty"`
	Type            UserType `json:"type,omitempty"`
}

type Direction string

const (
	Followers Direction = "followers"
	Following Direction = "following"
)

// ProfileSnippet is the part of a profile the graph API returns inline with
// each follower/following entry
type ProfileSnippet struct {
	ID          string `json:"id"`
	Username    string `json:"username,omitempty"`
	RawLocation string `json:"location,omitempty"`
}

// GraphPage is one page of a follower or following listing
type GraphPage struct {
	Users      []ProfileSnippet `json:"users"`
	NextCursor string           `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

// EdgeSet is persisted once per target user and never rewritten
type EdgeSet struct {
	UserID       string            `json:"user_id"`
	FollowerIDs  []string          `json:"follower_ids"`
	FollowingIDs []string          `json:"following_ids"`
	Profiles     map[string]string `json:"profiles,omitempty"`
	Truncated    bool              `json:"truncated,omitempty"`
	FetchedAt    time.Time         `json:"fetched_at"`
}

type FriendProfile struct {
	FriendID    string `json:"friend_id"`
	RawLocation string `json:"raw_location"`
}

// FriendList is the per-target output of profile extraction
type FriendList struct {
	UserID    string   `json:"user_id"`
	FriendIDs []string `json:"friend_ids"`
}

type InferredLocation struct {
	UserID                string    `json:"user_id"`
	City                  string    `json:"city"`
	Place                 string    `json:"place"`
	Confidence            float64   `json:"confidence"`
	SupportingFriendCount int       `json:"supporting_friend_count"`
	TotalGeocodedFriends  int       `json:"total_geocoded_friends"`
	Granularity           string    `json:"granularity"`
	Lat                   float64   `json:"lat,omitempty"`
	Lon                   float64   `json:"lon,omitempty"`
	InferredAt            time.Time `json:"inferred_at"`
}

// PlaceLevel is the administrative level a geocoder resolved a string to
type PlaceLevel string

const (
	PlaceLevelCity    PlaceLevel = "city"
	PlaceLevelState   PlaceLevel = "state"
	PlaceLevelCountry PlaceLevel = "country"
)
