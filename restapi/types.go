package restapi

import (
	"fmt"
)

type UploadResult struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

type Attendance struct {
	ID          int    `json:"id"`
	UserAddress string `json:"user_address"`
}

type EventEdges struct {
	Host *struct {
		Address string `json:"address"`
	} `json:"host,omitempty"`
	Attendances []Attendance `json:"attendances,omitempty"`
}

type EventDetail struct {
	EventID      uint64      `json:"event_id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Thumbnail    string      `json:"thumbnail"`
	Location     string      `json:"location"`
	StartDate    string      `json:"start_date"`
	Quota        uint64      `json:"quota"`
	IsRegistered bool        `json:"is_registered"`
	IsCheckedIn  bool        `json:"is_checked_in"`
	Edges        *EventEdges `json:"edges,omitempty"`
}

type UserProfile struct {
	ID                      int               `json:"id"`
	Address                 string            `json:"address"`
	Nickname                string            `json:"nickname,omitempty"`
	Bio                     string            `json:"bio,omitempty"`
	Pfp                     string            `json:"pfp,omitempty"`
	BgImage                 string            `json:"bg_image,omitempty"`
	ShortDescription        string            `json:"short_description,omitempty"`
	Socials                 map[string]string `json:"socials,omitempty"`
	HighlightedMomentID     *uint64           `json:"highlighted_moment_id,omitempty"`
	HighlightedEventPassIDs []uint64          `json:"highlighted_eventPass_ids,omitempty"`
	IsFreeMinted            bool              `json:"is_free_minted"`
}

type PassEvent struct {
	ID        int    `json:"id"`
	EventID   uint64 `json:"event_id"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
	StartDate string `json:"start_date"`
}

type EventPass struct {
	ID         int    `json:"id"`
	PassID     uint64 `json:"pass_id"`
	IsRedeemed bool   `json:"is_redeemed"`
	Edges      *struct {
		Event *PassEvent `json:"event,omitempty"`
	} `json:"edges,omitempty"`
}

type Pagination struct {
	TotalItems  int `json:"totalItems"`
	TotalPages  int `json:"totalPages"`
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
}

type EventPassPage struct {
	Data       []EventPass `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

type envelope[T any] struct {
	Data T `json:"data"`
}

// ApiError is a non 2xx answer from the backend.
type ApiError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Status, e.Body)
}
