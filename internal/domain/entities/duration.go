package entities

import (
	"fmt"
	"math"
	"time"
)

// DurationInfo summarises how long a meeting and its participants lasted, in minutes
type DurationInfo struct {
	MeetingMinutes     *int `json:"meeting_minutes"`
	ParticipantMinutes *int `json:"participant_minutes"`
}

// MeetingDuration spans from the first join to the last leave; the participant
// figure is the rounded average stay of invitations that both joined and left.
func MeetingDuration(invitations []Invitation) DurationInfo {
	var (
		first, last time.Time
		total       float64
		counted     int
	)
	for _, inv := range invitations {
		if inv.Debut != nil && (first.IsZero() || inv.Debut.Before(first)) {
			first = *inv.Debut
		}
		if inv.DateFin != nil && inv.DateFin.After(last) {
			last = *inv.DateFin
		}
		if m := ParticipantDuration(inv); m != nil {
			total += float64(*m)
			counted++
		}
	}

	var info DurationInfo
	if !first.IsZero() && !last.IsZero() {
		m := roundMinutes(last.Sub(first))
		info.MeetingMinutes = &m
	}
	if counted > 0 {
		m := int(math.Round(total / float64(counted)))
		info.ParticipantMinutes = &m
	}
	return info
}

// ParticipantDuration returns the stay of one invitation, or nil if it never completed
func ParticipantDuration(inv Invitation) *int {
	if inv.Debut == nil || inv.DateFin == nil {
		return nil
	}
	m := roundMinutes(inv.DateFin.Sub(*inv.Debut))
	return &m
}

// FormatMinutes renders a duration as "45m" or "1h 5m"
func FormatMinutes(minutes *int) string {
	if minutes == nil {
		return "-"
	}
	if *minutes < 60 {
		return fmt.Sprintf("%dm", *minutes)
	}
	return fmt.Sprintf("%dh %dm", *minutes/60, *minutes%60)
}

func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}
