package domain

import (
	"strconv"
	"time"

	"streamhub/modules/pagination"
)

type Status string

const (
	StatusCreated Status = "CREATED"
	StatusLive    Status = "LIVE"
	StatusEnded   Status = "ENDED"
)

// Rank orders statuses in listings: live streams first, ended streams last.
func (s Status) Rank() int {
	switch s {
	case StatusLive:
		return 0
	case StatusCreated:
		return 1
	case StatusEnded:
		return 2
	}
	return -1
}

func (s Status) Valid() bool { return s.Rank() >= 0 }

// StatusFromRank is the inverse of Rank.
func StatusFromRank(r int) (Status, bool) {
	for _, s := range []Status{StatusLive, StatusCreated, StatusEnded} {
		if s.Rank() == r {
			return s, true
		}
	}
	return "", false
}

// CanTransition reports whether a stream may move from s to next.
// created -> live -> ended and created -> ended are the only moves.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusCreated:
		return next == StatusLive || next == StatusEnded
	case StatusLive:
		return next == StatusEnded
	}
	return false
}

type (
	Application struct {
		reader        StreamReadStore
		writer        StreamWriteStore
		issuer        PublishIssuer
		cursors       *pagination.Codec[StreamKey]
		streamURLBase string
	}

	Stream struct {
		ID          int64
		Title       string
		Description string
		Status      Status
		Owner       string
		CreatedAt   time.Time
		UpdatedAt   time.Time

		Version int64
	}

	// StreamAccess is what a publisher needs to push media into a stream.
	StreamAccess struct {
		Stream       Stream
		StreamURL    string
		PublishToken string
	}

	// StreamKey is a stream's position in the listing order
	// (rank ASC, created_at DESC, id DESC). CreatedAt is in microseconds,
	// the resolution Postgres stores.
	StreamKey struct {
		Rank      int   `json:"r"`
		CreatedAt int64 `json:"c"`
		ID        int64 `json:"i"`
	}

	// ListFilter narrows a listing. The zero value lists every stream.
	ListFilter struct {
		Owner  string
		Status Status
	}

	UpdateStreamParams struct {
		ID          int64
		Title       string
		Description string
		Version     int64
	}
)

func (s *Stream) V() string {
	return strconv.FormatInt(s.Version, 10)
}

func (s Stream) Key() StreamKey {
	return StreamKey{Rank: s.Status.Rank(), CreatedAt: s.CreatedAt.UnixMicro(), ID: s.ID}
}

// Less reports whether k sorts before o.
func (k StreamKey) Less(o StreamKey) bool {
	if k.Rank != o.Rank {
		return k.Rank < o.Rank
	}
	if k.CreatedAt != o.CreatedAt {
		return k.CreatedAt > o.CreatedAt
	}
	return k.ID > o.ID
}

// Fingerprint identifies the filter inside a cursor so that a cursor from
// one listing cannot be replayed against another.
func (f ListFilter) Fingerprint() string {
	switch {
	case f.Owner != "" && f.Status != "":
		return "owner:" + f.Owner + "|status:" + string(f.Status)
	case f.Owner != "":
		return "owner:" + f.Owner
	case f.Status != "":
		return "status:" + string(f.Status)
	}
	return "all"
}

func (f ListFilter) Matches(s Stream) bool {
	if f.Owner != "" && s.Owner != f.Owner {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}
