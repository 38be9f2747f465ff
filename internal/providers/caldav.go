// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

/*
caldav.go - Apple iCloud CalDAV adapter

Implements the Adapter interface over raw CalDAV: PROPFIND for principal
and calendar discovery, REPORT calendar-query for window fetches, and
PUT/DELETE on .ics resources for mutations. Event bodies are parsed with
line-oriented matching rather than a full iCalendar parser; the fields
the reconciliation pipeline needs (UID, SUMMARY, DTSTART, DTEND,
LAST-MODIFIED, X-ORBIT-ID) are all single-line properties.
*/

package providers

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/andygivens/orbit/internal/config"
	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/models"
)

// DefaultCalDAVURL is used when the provider config leaves the URL empty.
const DefaultCalDAVURL = "https://caldav.icloud.com"

// orbitIDProperty carries the canonical id on upstream CalDAV events.
// The sync engine writes it when it creates or links an event; Orbit
// reads it back to decide linked vs unlinked.
const orbitIDProperty = "X-ORBIT-ID"

const icalTimeLayout = "20060102T150405Z"

// CalDAVAdapter talks to an Apple iCloud (or compatible) CalDAV server.
type CalDAVAdapter struct {
	provider     models.Provider
	baseURL      string
	username     string
	appPassword  string
	calendarName string

	httpClient *http.Client
	limiter    *rate.Limiter

	mu           sync.Mutex
	calendarPath string // discovered lazily, cached for the adapter lifetime
}

var _ Adapter = (*CalDAVAdapter)(nil)

// NewCalDAVAdapter creates a CalDAV adapter from provider configuration.
func NewCalDAVAdapter(cfg config.ProviderConfig) *CalDAVAdapter {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = DefaultCalDAVURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &CalDAVAdapter{
		provider: models.Provider{
			ID:      cfg.ID,
			Name:    cfg.Name,
			Kind:    models.ProviderKindCalDAV,
			Enabled: cfg.Enabled,
		},
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		username:     cfg.Username,
		appPassword:  cfg.AppPassword,
		calendarName: cfg.CalendarName,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      limiter,
	}
}

// ID returns the provider id this adapter serves.
func (c *CalDAVAdapter) ID() string { return c.provider.ID }

// Provider returns the provider descriptor.
func (c *CalDAVAdapter) Provider() models.Provider { return c.provider }

// Close releases idle connections.
func (c *CalDAVAdapter) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// ListEvents fetches the events overlapping [since, until) from the
// configured calendar. Events beyond limit are dropped with a warning.
func (c *CalDAVAdapter) ListEvents(ctx context.Context, since, until time.Time, limit int) ([]models.ProviderEventRecord, error) {
	calPath, err := c.ensureCalendar(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop>
    <D:getetag/>
    <C:calendar-data/>
  </D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="%s" end="%s"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`, since.UTC().Format(icalTimeLayout), until.UTC().Format(icalTimeLayout))

	ms, err := c.davRequest(ctx, "REPORT", calPath, "1", query)
	if err != nil {
		return nil, fmt.Errorf("caldav calendar-query failed: %w", err)
	}

	records := make([]models.ProviderEventRecord, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		data := resp.calendarData()
		if data == "" {
			continue
		}
		rec, ok := c.parseEvent(data)
		if !ok {
			continue
		}
		records = append(records, rec)
		if limit > 0 && len(records) >= limit {
			logging.Warn().
				Str("provider", c.provider.ID).
				Int("limit", limit).
				Msg("CalDAV fetch truncated at record limit")
			break
		}
	}
	return records, nil
}

// LinkEvent tags the upstream event with a canonical id.
func (c *CalDAVAdapter) LinkEvent(ctx context.Context, providerEventID, canonicalID string) error {
	return c.rewriteEvent(ctx, providerEventID, func(ical string) string {
		return setICalProperty(ical, orbitIDProperty, canonicalID)
	})
}

// UnlinkEvent removes the canonical id tag from the upstream event.
func (c *CalDAVAdapter) UnlinkEvent(ctx context.Context, providerEventID string) error {
	return c.rewriteEvent(ctx, providerEventID, func(ical string) string {
		return removeICalProperty(ical, orbitIDProperty)
	})
}

// ConfirmEvent verifies the event still exists upstream.
func (c *CalDAVAdapter) ConfirmEvent(ctx context.Context, providerEventID string) error {
	_, _, err := c.findEvent(ctx, providerEventID)
	return err
}

// RecreateEvent writes a new event carrying the canonical id onto this
// provider, using the reference record for title and times.
func (c *CalDAVAdapter) RecreateEvent(ctx context.Context, canonicalID string, event models.ProviderEventRecord) error {
	calPath, err := c.ensureCalendar(ctx)
	if err != nil {
		return err
	}

	uid := "orbit-" + canonicalID
	now := time.Now().UTC().Format(icalTimeLayout)

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Orbit//EN\r\nBEGIN:VEVENT\r\n")
	fmt.Fprintf(&b, "UID:%s\r\n", uid)
	fmt.Fprintf(&b, "DTSTAMP:%s\r\n", now)
	fmt.Fprintf(&b, "SUMMARY:%s\r\n", event.Title)
	if t, ok := parseRFC3339(event.StartAt); ok {
		fmt.Fprintf(&b, "DTSTART:%s\r\n", t.UTC().Format(icalTimeLayout))
	}
	if t, ok := parseRFC3339(event.EndAt); ok {
		fmt.Fprintf(&b, "DTEND:%s\r\n", t.UTC().Format(icalTimeLayout))
	}
	fmt.Fprintf(&b, "%s:%s\r\n", orbitIDProperty, canonicalID)
	b.WriteString("END:VEVENT\r\nEND:VCALENDAR\r\n")

	path := calPath + uid + ".ics"
	resp, err := c.do(ctx, "PUT", path, map[string]string{"Content-Type": "text/calendar; charset=utf-8"}, b.String())
	if err != nil {
		return fmt.Errorf("caldav event create failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("caldav event create returned status %d", resp.StatusCode)
	}
	return nil
}

// ensureCalendar discovers the configured calendar's collection path once
// and caches it.
func (c *CalDAVAdapter) ensureCalendar(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calendarPath != "" {
		return c.calendarPath, nil
	}

	principal, err := c.discoverPrincipal(ctx)
	if err != nil {
		return "", err
	}
	home, err := c.discoverCalendarHome(ctx, principal)
	if err != nil {
		return "", err
	}
	calPath, err := c.findCalendarByName(ctx, home)
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(calPath, "/") {
		calPath += "/"
	}
	c.calendarPath = calPath

	logging.Info().
		Str("provider", c.provider.ID).
		Str("calendar", c.calendarName).
		Str("path", calPath).
		Msg("CalDAV calendar discovered")
	return calPath, nil
}

func (c *CalDAVAdapter) discoverPrincipal(ctx context.Context) (string, error) {
	body := `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:"><D:prop><D:current-user-principal/></D:prop></D:propfind>`

	ms, err := c.davRequest(ctx, "PROPFIND", "/", "0", body)
	if err != nil {
		return "", fmt.Errorf("caldav principal discovery failed: %w", err)
	}
	for _, resp := range ms.Responses {
		for _, ps := range resp.Propstats {
			if ps.Prop.CurrentUserPrincipal.Href != "" {
				return ps.Prop.CurrentUserPrincipal.Href, nil
			}
		}
	}
	return "", fmt.Errorf("caldav principal discovery returned no principal")
}

func (c *CalDAVAdapter) discoverCalendarHome(ctx context.Context, principal string) (string, error) {
	body := `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><C:calendar-home-set/></D:prop>
</D:propfind>`

	ms, err := c.davRequest(ctx, "PROPFIND", principal, "0", body)
	if err != nil {
		return "", fmt.Errorf("caldav home-set discovery failed: %w", err)
	}
	for _, resp := range ms.Responses {
		for _, ps := range resp.Propstats {
			if ps.Prop.CalendarHomeSet.Href != "" {
				return ps.Prop.CalendarHomeSet.Href, nil
			}
		}
	}
	return "", fmt.Errorf("caldav home-set discovery returned no calendar home")
}

func (c *CalDAVAdapter) findCalendarByName(ctx context.Context, home string) (string, error) {
	body := `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:"><D:prop><D:displayname/><D:resourcetype/></D:prop></D:propfind>`

	ms, err := c.davRequest(ctx, "PROPFIND", home, "1", body)
	if err != nil {
		return "", fmt.Errorf("caldav calendar listing failed: %w", err)
	}

	available := make([]string, 0, len(ms.Responses))
	for _, resp := range ms.Responses {
		for _, ps := range resp.Propstats {
			if ps.Prop.ResourceType.Calendar == nil {
				continue
			}
			name := ps.Prop.DisplayName
			available = append(available, name)
			if strings.EqualFold(name, c.calendarName) {
				return resp.Href, nil
			}
		}
	}
	return "", fmt.Errorf("caldav calendar %q not found (available: %s)", c.calendarName, strings.Join(available, ", "))
}

// findEvent locates one event by UID via a prop-filter query. Returns
// the resource href and iCal body, or ErrEventNotFound.
func (c *CalDAVAdapter) findEvent(ctx context.Context, uid string) (string, string, error) {
	calPath, err := c.ensureCalendar(ctx)
	if err != nil {
		return "", "", err
	}

	query := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><D:getetag/><C:calendar-data/></D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:prop-filter name="UID"><C:text-match collation="i;octet">%s</C:text-match></C:prop-filter>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`, uid)

	ms, err := c.davRequest(ctx, "REPORT", calPath, "1", query)
	if err != nil {
		return "", "", fmt.Errorf("caldav event lookup failed: %w", err)
	}
	for _, resp := range ms.Responses {
		if data := resp.calendarData(); data != "" {
			return resp.Href, data, nil
		}
	}
	return "", "", fmt.Errorf("caldav event %s: %w", uid, ErrEventNotFound)
}

// rewriteEvent fetches an event body, applies transform, and writes it
// back to the same resource.
func (c *CalDAVAdapter) rewriteEvent(ctx context.Context, uid string, transform func(string) string) error {
	href, ical, err := c.findEvent(ctx, uid)
	if err != nil {
		return err
	}

	resp, err := c.do(ctx, "PUT", href, map[string]string{"Content-Type": "text/calendar; charset=utf-8"}, transform(ical))
	if err != nil {
		return fmt.Errorf("caldav event update failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("caldav event update returned status %d", resp.StatusCode)
	}
	return nil
}

var (
	icalUIDRe      = regexp.MustCompile(`(?m)^UID:(.+)$`)
	icalSummaryRe  = regexp.MustCompile(`(?m)^SUMMARY:(.+)$`)
	icalDTStartRe  = regexp.MustCompile(`(?m)^DTSTART(?:;[^:]*)?:(\d{8}T\d{6}Z?)`)
	icalDTEndRe    = regexp.MustCompile(`(?m)^DTEND(?:;[^:]*)?:(\d{8}T\d{6}Z?)`)
	icalLastModRe  = regexp.MustCompile(`(?m)^LAST-MODIFIED:(\d{8}T\d{6}Z?)`)
	icalOrbitIDRe  = regexp.MustCompile(`(?m)^` + orbitIDProperty + `:(.+)$`)
	icalEndEventRe = regexp.MustCompile(`(?m)^END:VEVENT`)
)

// parseEvent extracts a ProviderEventRecord from an iCal body. Returns
// false when the body has no UID, which means it is not usable as an
// observation.
func (c *CalDAVAdapter) parseEvent(ical string) (models.ProviderEventRecord, bool) {
	uid := matchOne(icalUIDRe, ical)
	if uid == "" {
		return models.ProviderEventRecord{}, false
	}

	rec := models.ProviderEventRecord{
		ProviderID:      c.provider.ID,
		ProviderEventID: uid,
		CanonicalID:     matchOne(icalOrbitIDRe, ical),
		Title:           matchOne(icalSummaryRe, ical),
		StartAt:         icalTimeToRFC3339(matchOne(icalDTStartRe, ical)),
		EndAt:           icalTimeToRFC3339(matchOne(icalDTEndRe, ical)),
		LastUpdatedAt:   icalTimeToRFC3339(matchOne(icalLastModRe, ical)),
	}
	return rec, true
}

func matchOne(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(strings.TrimSuffix(m[1], "\r"))
}

// icalTimeToRFC3339 converts 20060102T150405[Z] to an RFC3339 string.
// Unparseable input passes through empty; the reconciliation pipeline
// treats missing timestamps leniently.
func icalTimeToRFC3339(s string) string {
	if s == "" {
		return ""
	}
	layout := "20060102T150405"
	if strings.HasSuffix(s, "Z") {
		layout = icalTimeLayout
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseRFC3339(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// setICalProperty replaces or inserts a single-line property before
// END:VEVENT.
func setICalProperty(ical, name, value string) string {
	stripped := removeICalProperty(ical, name)
	line := name + ":" + value + "\r\n"
	loc := icalEndEventRe.FindStringIndex(stripped)
	if loc == nil {
		return stripped + line
	}
	return stripped[:loc[0]] + line + stripped[loc[0]:]
}

// removeICalProperty drops all lines carrying the named property.
func removeICalProperty(ical, name string) string {
	lines := strings.Split(ical, "\n")
	kept := lines[:0]
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), name+":") {
			continue
		}
		kept = append(kept, l)
	}
	return strings.Join(kept, "\n")
}

// davRequest performs a WebDAV method and decodes the multistatus body.
func (c *CalDAVAdapter) davRequest(ctx context.Context, method, path, depth, body string) (*multistatus, error) {
	headers := map[string]string{
		"Content-Type": "application/xml; charset=utf-8",
		"Depth":        depth,
	}
	resp, err := c.do(ctx, method, path, headers, body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusMultiStatus && resp.StatusCode != http.StatusOK {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if readErr != nil {
			return nil, fmt.Errorf("caldav %s returned status %d (failed to read body)", method, resp.StatusCode)
		}
		return nil, fmt.Errorf("caldav %s returned status %d: %s", method, resp.StatusCode, string(raw))
	}

	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("failed to decode caldav multistatus: %w", err)
	}
	return &ms, nil
}

// do performs one authenticated HTTP request against the CalDAV server.
// Paths may be absolute URLs (some servers return them in hrefs) or
// server-relative.
func (c *CalDAVAdapter) do(ctx context.Context, method, path string, headers map[string]string, body string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	url := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		url = c.baseURL + path
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav request: %w", err)
	}
	req.SetBasicAuth(c.username, c.appPassword)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}

// WebDAV multistatus response types. Field names match by local element
// name so both DAV: and caldav namespace properties decode.
type multistatus struct {
	XMLName   xml.Name      `xml:"multistatus"`
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href      string     `xml:"href"`
	Propstats []propstat `xml:"propstat"`
}

func (r davResponse) calendarData() string {
	for _, ps := range r.Propstats {
		if ps.Prop.CalendarData != "" {
			return ps.Prop.CalendarData
		}
	}
	return ""
}

type propstat struct {
	Status string  `xml:"status"`
	Prop   davProp `xml:"prop"`
}

type davProp struct {
	DisplayName          string      `xml:"displayname"`
	GetETag              string      `xml:"getetag"`
	CalendarData         string      `xml:"calendar-data"`
	CurrentUserPrincipal davHref     `xml:"current-user-principal"`
	CalendarHomeSet      davHref     `xml:"calendar-home-set"`
	ResourceType         davResource `xml:"resourcetype"`
}

type davHref struct {
	Href string `xml:"href"`
}

type davResource struct {
	Calendar *struct{} `xml:"calendar"`
}
