package model

import "time"

// StoredFile describes a file held by the drop store. It is addressed by its
// original filename; a later upload with the same name replaces it.
type StoredFile struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type"`
	LastModified time.Time `json:"last_modified"`
}

// JournalEntry is a diagnostic record of one successful upload. The drop
// store never consults it; download selection is by timestamp only.
type JournalEntry struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	FileID    string    `json:"file_id"`
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
}
