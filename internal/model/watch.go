// Package model defines the watch records persisted by the notification store.
package model

// Keyed is implemented by every watch kind so generic code can address a
// record by its natural key.
type Keyed interface {
	Key() string
}

// Watch is the capability set shared by every watch kind. It lets the
// reconciliation loop be written once for both kinds.
type Watch[T any] interface {
	Keyed
	// ReadMarker returns the stored read marker, or "" when none is set.
	ReadMarker() string
	Unread() int
	WithKey(key string) T
	// WithProgress returns a copy with the marker and unread count set.
	// The marker is always present in the result.
	WithProgress(marker string, unread int) T
}

var (
	_ Watch[DevWatch]  = DevWatch{}
	_ Watch[RepoWatch] = RepoWatch{}
)

// DevWatch tracks how much of a developer account's activity feed has been
// read. An empty LastReadID means nothing has been acknowledged yet.
type DevWatch struct {
	Login       string `json:"login"`
	LastReadID  string `json:"lastReadId"`
	UnreadCount int    `json:"unreadCount"`
}

func (d DevWatch) Key() string        { return d.Login }
func (d DevWatch) ReadMarker() string { return d.LastReadID }
func (d DevWatch) Unread() int        { return d.UnreadCount }

func (d DevWatch) WithKey(login string) DevWatch {
	d.Login = login
	return d
}

func (d DevWatch) WithProgress(marker string, unread int) DevWatch {
	d.LastReadID = marker
	d.UnreadCount = unread
	return d
}

// RepoWatch tracks how much of a repository's activity feed has been read.
//
// LastReadCommitSHA is a pointer because absence is a distinct state from
// the empty string. The store refuses to persist an absent marker: callers
// pass Marker("") to record the initial unread state. DevWatch has no such
// requirement.
type RepoWatch struct {
	FullName          string  `json:"fullName"`
	LastReadCommitSHA *string `json:"lastReadCommitSha"`
	UnreadCount       int     `json:"unreadCount"`
}

func (r RepoWatch) Key() string { return r.FullName }
func (r RepoWatch) Unread() int { return r.UnreadCount }

func (r RepoWatch) ReadMarker() string {
	if r.LastReadCommitSHA == nil {
		return ""
	}
	return *r.LastReadCommitSHA
}

func (r RepoWatch) WithKey(fullName string) RepoWatch {
	r.FullName = fullName
	return r
}

func (r RepoWatch) WithProgress(marker string, unread int) RepoWatch {
	r.LastReadCommitSHA = Marker(marker)
	r.UnreadCount = unread
	return r
}

// Marker returns a pointer to s, for building RepoWatch literals.
func Marker(s string) *string { return &s }
