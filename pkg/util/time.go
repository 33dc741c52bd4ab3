package util

import "time"

// ISOTime formats t as an ISO-8601 UTC timestamp with second precision.
func ISOTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// HTTPDate formats t for the Date response header.
func HTTPDate(t time.Time) string {
	return t.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT")
}
