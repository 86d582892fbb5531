package utils

import (
	"fmt"
	"strings"
	"time"
)

// apiZones maps the time zone codes accepted by the CloudPayments API to IANA locations.
var apiZones = map[string]string{
	"HST":  "Pacific/Honolulu",
	"AKST": "America/Anchorage",
	"PST":  "America/Los_Angeles",
	"MST":  "America/Denver",
	"CST":  "America/Chicago",
	"EST":  "America/New_York",
	"AST":  "America/Halifax",
	"BRT":  "America/Sao_Paulo",
	"UTC":  "UTC",
	"GMT":  "Europe/London",
	"CET":  "Europe/Berlin",
	"EET":  "Europe/Kiev",
	"MSK":  "Europe/Moscow",
	"AZT":  "Asia/Baku",
	"AMT":  "Asia/Yerevan",
	"SAMT": "Europe/Samara",
	"GET":  "Asia/Tbilisi",
	"TJT":  "Asia/Dushanbe",
	"YEKT": "Asia/Yekaterinburg",
	"ALMT": "Asia/Almaty",
	"NOVT": "Asia/Novosibirsk",
	"KRAT": "Asia/Krasnoyarsk",
	"HKT":  "Asia/Hong_Kong",
	"IRKT": "Asia/Irkutsk",
	"SGT":  "Asia/Singapore",
	"ULAT": "Asia/Ulaanbaatar",
	"YAKT": "Asia/Yakutsk",
	"VLAT": "Asia/Vladivostok",
	"SAKT": "Asia/Sakhalin",
	"ANAT": "Asia/Kamchatka",
}

// apiCodes is the reverse of apiZones.
var apiCodes = func() map[string]string {
	m := make(map[string]string, len(apiZones))
	for code, name := range apiZones {
		m[name] = code
	}
	return m
}()

// APITimestampLayout is the layout used by the API for request bounds and CreatedDateIso values.
const APITimestampLayout = "2006-01-02T15:04:05"

// ResolveLocation returns the location for an API time zone code (e.g. "MSK") or an IANA name.
// An empty code resolves to UTC.
func ResolveLocation(code string) (*time.Location, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return time.UTC, nil
	}
	name := code
	if iana, ok := apiZones[strings.ToUpper(code)]; ok {
		name = iana
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q: %w", code, err)
	}
	return loc, nil
}

// APIZoneCode returns the code the API expects for zone, which is either a code in any case or
// an IANA name that has one (e.g. "Europe/Moscow" is "MSK"). An empty zone is UTC.
func APIZoneCode(zone string) (string, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return "UTC", nil
	}
	if code := strings.ToUpper(zone); apiZones[code] != "" {
		return code, nil
	}
	if code, ok := apiCodes[zone]; ok {
		return code, nil
	}
	return "", fmt.Errorf("time zone %q has no CloudPayments code", zone)
}

// ParseTimestamp parses a configured timestamp. RFC 3339 values keep their offset, while
// date-only ("2006-01-02") and zone-less API values are interpreted in loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range []string{APITimestampLayout, "2006-01-02T15:04:05.999999999", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", value)
}
