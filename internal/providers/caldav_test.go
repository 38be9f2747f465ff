// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package providers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andygivens/orbit/internal/config"
)

const caldavPrincipalResponse = `<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/</D:href>
    <D:propstat>
      <D:prop><D:current-user-principal><D:href>/principal/1/</D:href></D:current-user-principal></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

const caldavHomeResponse = `<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:response>
    <D:href>/principal/1/</D:href>
    <D:propstat>
      <D:prop><C:calendar-home-set><D:href>/calendars/1/</D:href></C:calendar-home-set></D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

const caldavCalendarsResponse = `<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:response>
    <D:href>/calendars/1/home/</D:href>
    <D:propstat>
      <D:prop>
        <D:displayname>Home</D:displayname>
        <D:resourcetype><D:collection/><C:calendar/></D:resourcetype>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/calendars/1/family/</D:href>
    <D:propstat>
      <D:prop>
        <D:displayname>Family</D:displayname>
        <D:resourcetype><D:collection/><C:calendar/></D:resourcetype>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

const caldavEventsResponse = `<?xml version="1.0"?>
<D:multistatus xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:response>
    <D:href>/calendars/1/family/abc.ics</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"etag-1"</D:getetag>
        <C:calendar-data>BEGIN:VCALENDAR
VERSION:2.0
BEGIN:VEVENT
UID:event-abc
SUMMARY:Dentist
DTSTART:20260301T150000Z
DTEND:20260301T160000Z
LAST-MODIFIED:20260220T100000Z
X-ORBIT-ID:canon-1
END:VEVENT
END:VCALENDAR</C:calendar-data>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/calendars/1/family/def.ics</D:href>
    <D:propstat>
      <D:prop>
        <D:getetag>"etag-2"</D:getetag>
        <C:calendar-data>BEGIN:VCALENDAR
BEGIN:VEVENT
UID:event-def
SUMMARY:Untagged
DTSTART;TZID=America/New_York:20260302T090000
END:VEVENT
END:VCALENDAR</C:calendar-data>
      </D:prop>
      <D:status>HTTP/1.1 200 OK</D:status>
    </D:propstat>
  </D:response>
</D:multistatus>`

// newCalDAVTestServer routes discovery PROPFINDs and calendar REPORTs to
// canned multistatus bodies.
func newCalDAVTestServer(t *testing.T, puts *[]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		if !ok || user != "user@example.com" {
			t.Errorf("request missing basic auth: %s %s", r.Method, r.URL.Path)
		}

		switch {
		case r.Method == "PROPFIND" && r.URL.Path == "/":
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(caldavPrincipalResponse))
		case r.Method == "PROPFIND" && r.URL.Path == "/principal/1/":
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(caldavHomeResponse))
		case r.Method == "PROPFIND" && r.URL.Path == "/calendars/1/":
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(caldavCalendarsResponse))
		case r.Method == "REPORT" && r.URL.Path == "/calendars/1/family/":
			w.WriteHeader(http.StatusMultiStatus)
			_, _ = w.Write([]byte(caldavEventsResponse))
		case r.Method == "PUT":
			body, _ := io.ReadAll(r.Body)
			*puts = append(*puts, r.URL.Path+"\n"+string(body))
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestCalDAVAdapter(url string) *CalDAVAdapter {
	return NewCalDAVAdapter(config.ProviderConfig{
		ID:           "apple",
		Name:         "Apple iCloud",
		Kind:         "caldav",
		Enabled:      true,
		URL:          url,
		Username:     "user@example.com",
		AppPassword:  "abcd-efgh-ijkl-mnop",
		CalendarName: "Family",
	})
}

func TestCalDAVListEvents(t *testing.T) {
	var puts []string
	server := newCalDAVTestServer(t, &puts)
	defer server.Close()

	adapter := newTestCalDAVAdapter(server.URL)
	since := time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	records, err := adapter.ListEvents(context.Background(), since, until, 0)
	if err != nil {
		t.Fatalf("ListEvents() error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("ListEvents() returned %d records, want 2", len(records))
	}

	first := records[0]
	if first.ProviderEventID != "event-abc" {
		t.Errorf("ProviderEventID = %q, want event-abc", first.ProviderEventID)
	}
	if first.CanonicalID != "canon-1" {
		t.Errorf("CanonicalID = %q, want canon-1", first.CanonicalID)
	}
	if first.Title != "Dentist" {
		t.Errorf("Title = %q, want Dentist", first.Title)
	}
	if first.StartAt != "2026-03-01T15:00:00Z" {
		t.Errorf("StartAt = %q, want 2026-03-01T15:00:00Z", first.StartAt)
	}
	if first.LastUpdatedAt != "2026-02-20T10:00:00Z" {
		t.Errorf("LastUpdatedAt = %q, want 2026-02-20T10:00:00Z", first.LastUpdatedAt)
	}

	second := records[1]
	if second.CanonicalID != "" {
		t.Errorf("untagged event CanonicalID = %q, want empty", second.CanonicalID)
	}
	// TZID form without Z still parses to a timestamp.
	if second.StartAt == "" {
		t.Error("TZID DTSTART did not parse")
	}
}

func TestCalDAVRecreateEvent(t *testing.T) {
	var puts []string
	server := newCalDAVTestServer(t, &puts)
	defer server.Close()

	adapter := newTestCalDAVAdapter(server.URL)
	err := adapter.RecreateEvent(context.Background(), "canon-7", recordFixture("apple", "x", ""))
	if err != nil {
		t.Fatalf("RecreateEvent() error: %v", err)
	}
	if len(puts) != 1 {
		t.Fatalf("recorded %d PUTs, want 1", len(puts))
	}
	if !strings.Contains(puts[0], "/calendars/1/family/orbit-canon-7.ics") {
		t.Errorf("PUT path wrong: %s", puts[0])
	}
	if !strings.Contains(puts[0], "X-ORBIT-ID:canon-7") {
		t.Errorf("PUT body missing canonical tag: %s", puts[0])
	}
}

func TestICalPropertyEditing(t *testing.T) {
	ical := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nUID:u1\r\nSUMMARY:Hi\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"

	tagged := setICalProperty(ical, orbitIDProperty, "canon-3")
	if !strings.Contains(tagged, "X-ORBIT-ID:canon-3") {
		t.Fatalf("setICalProperty did not insert tag:\n%s", tagged)
	}
	// Tag lands inside the VEVENT.
	if strings.Index(tagged, "X-ORBIT-ID") > strings.Index(tagged, "END:VEVENT") {
		t.Errorf("tag inserted after END:VEVENT:\n%s", tagged)
	}

	retagged := setICalProperty(tagged, orbitIDProperty, "canon-4")
	if strings.Contains(retagged, "canon-3") {
		t.Errorf("old tag survived retagging:\n%s", retagged)
	}

	cleared := removeICalProperty(retagged, orbitIDProperty)
	if strings.Contains(cleared, "X-ORBIT-ID") {
		t.Errorf("removeICalProperty left tag behind:\n%s", cleared)
	}
}

func TestICalTimeToRFC3339(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"20260301T150000Z", "2026-03-01T15:00:00Z"},
		{"20260301T150000", "2026-03-01T15:00:00Z"},
		{"", ""},
		{"garbage", ""},
	}
	for _, tt := range tests {
		if got := icalTimeToRFC3339(tt.in); got != tt.want {
			t.Errorf("icalTimeToRFC3339(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
