// Package suntimes computes sunrise and sunset for a fixed location.
package suntimes

import (
	"fmt"
	"time"

	"sunswitch/internal/config"

	"github.com/nathan-osman/go-sunrise"
	"go.uber.org/zap"
)

// SunTimes holds the sunrise and sunset instants for a single calendar date,
// expressed in the location's timezone.
type SunTimes struct {
	Date    time.Time
	Sunrise time.Time
	Sunset  time.Time
}

// SameDay reports whether t falls on the same calendar date as the computed
// sun times, in the same timezone.
func (s SunTimes) SameDay(t time.Time) bool {
	y1, m1, d1 := s.Date.Date()
	y2, m2, d2 := t.In(s.Date.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Provider computes sun times for a fixed geographic location.
type Provider struct {
	latitude  float64
	longitude float64
	location  *time.Location
	logger    *zap.Logger
}

// NewProvider creates a Provider for the given location. The timezone
// identifier must resolve via the system tz database.
func NewProvider(loc *config.Location, logger *zap.Logger) (*Provider, error) {
	tz, err := time.LoadLocation(loc.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", loc.Timezone, err)
	}

	return &Provider{
		latitude:  loc.Latitude,
		longitude: loc.Longitude,
		location:  tz,
		logger:    logger.Named("suntimes"),
	}, nil
}

// Timezone returns the location's timezone.
func (p *Provider) Timezone() *time.Location {
	return p.location
}

// ComputeSunTimes calculates sunrise and sunset for the calendar date of t
// in the provider's timezone. The computation is purely astronomical, no
// network I/O.
func (p *Provider) ComputeSunTimes(t time.Time) SunTimes {
	local := t.In(p.location)
	year, month, day := local.Date()

	rise, set := sunrise.SunriseSunset(p.latitude, p.longitude, year, month, day)

	st := SunTimes{
		Date:    time.Date(year, month, day, 0, 0, 0, 0, p.location),
		Sunrise: rise.In(p.location),
		Sunset:  set.In(p.location),
	}

	p.logger.Debug("Sun times computed",
		zap.Time("date", st.Date),
		zap.Time("sunrise", st.Sunrise),
		zap.Time("sunset", st.Sunset))

	return st
}
